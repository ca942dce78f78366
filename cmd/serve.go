package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aouyang1/quoteframe/api"
	"github.com/aouyang1/quoteframe/generator"
	"github.com/aouyang1/quoteframe/slides"
	"github.com/aouyang1/quoteframe/slideshow"
	"github.com/aouyang1/quoteframe/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the slideshow viewer and API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ListenAddr = addr
		}
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	// Initialize database
	database, err := store.NewDatabase(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	slideStore := slides.NewStore(database, cfg.StoreConfig())
	controller := slideshow.NewController(slideStore)
	defer controller.Close()

	opts := api.Options{
		Image:           cfg.ImageOptions(),
		GenerateTimeout: cfg.Generator.Timeout.Duration,
	}
	if cfg.Generator.Enabled() {
		opts.Generator = generator.New(generator.Config{
			APIKey:     cfg.Generator.APIKey,
			BaseURL:    cfg.Generator.BaseURL,
			TextModel:  cfg.Generator.TextModel,
			ImageModel: cfg.Generator.ImageModel,
			Image:      cfg.ImageOptions(),
		})
	} else {
		slog.Info("content generation disabled, set QF_GENAI_API_KEY to enable")
	}

	backup, err := api.NewBackupManager(ctx, cfg.Backup, slideStore)
	switch {
	case errors.Is(err, api.ErrBackupDisabled):
		slog.Info("remote backup disabled, set QF_S3_BUCKET to enable")
	case err != nil:
		slog.Warn("unable to initialize remote backup", "error", err)
	default:
		opts.Backup = backup
	}

	ws := api.NewWebServer(slideStore, controller, opts)
	return ws.Start(ctx, cfg.ListenAddr)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from QF_LISTEN_ADDR or config)")
	rootCmd.AddCommand(serveCmd)
}
