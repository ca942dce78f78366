// Package cmd is the quoteframe command line.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aouyang1/quoteframe/api/client"
	"github.com/aouyang1/quoteframe/api/models"
	"github.com/aouyang1/quoteframe/config"
	"github.com/aouyang1/quoteframe/logging"
	"github.com/aouyang1/quoteframe/slides"
	"github.com/aouyang1/quoteframe/slideshow"
	"github.com/spf13/cobra"
)

// SlideAPI is the server surface the client commands use.
type SlideAPI interface {
	State(ctx context.Context) (slideshow.State, error)
	Slides(ctx context.Context) ([]slides.Slide, error)
	AddSlide(ctx context.Context, slide slides.Slide) (models.AddSlideResponse, error)
	UploadSlide(ctx context.Context, imagePath, quote, author string) (models.AddSlideResponse, error)
	GenerateSlide(ctx context.Context) (models.AddSlideResponse, error)
	RemoveSlide(ctx context.Context, index int) (slideshow.State, error)
	Next(ctx context.Context) (slideshow.State, error)
	Previous(ctx context.Context) (slideshow.State, error)
	GoTo(ctx context.Context, index int) (slideshow.State, error)
	Preferences(ctx context.Context) (slides.Preferences, error)
	SetPreference(ctx context.Context, key, value string) (slides.Preferences, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) (slideshow.State, error)
	Reset(ctx context.Context) (slideshow.State, error)
	BackupPush(ctx context.Context) error
	BackupRestore(ctx context.Context) (slideshow.State, error)
}

var (
	cfg          = config.Default()
	serverURL    string
	closeLogging = func() error { return nil }
)

// newAPI is swapped in tests.
var newAPI = func(baseURL string) SlideAPI {
	return client.NewSlideClient(baseURL)
}

func slideAPI() SlideAPI {
	return newAPI(serverURL)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quoteframe",
	Short: "A rotating slideshow of images with quotes.",
	Long: `A rotating slideshow of images with quotes.

Run 'quoteframe serve' to start the viewer and API, then use the other
commands to manage slides and drive the slideshow.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := closeLogging(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "failed to close log file:", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default from QF_SERVER_URL or config)")
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	closer, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	closeLogging = closer

	if serverURL == "" {
		serverURL = cfg.ServerURL
	}
	return nil
}

// confirm asks a yes/no question on the command's streams; anything but an
// explicit yes declines.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (y/N): ", question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func printState(w io.Writer, s slideshow.State) {
	if s.Empty {
		fmt.Fprintln(w, "no slides")
		return
	}
	fmt.Fprintf(w, "slide %d of %d\n", s.Index+1, s.Length)
}
