package cmd

import (
	"fmt"
	"io"

	"github.com/aouyang1/quoteframe/slides"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings [key value]",
	Short: "Show or change viewer preferences",
	Long: `Show the preferences, or set one.

KEYS:
    glowColor        accent color, e.g. #a855f7
    slideDuration    rotation interval in milliseconds, 0 stops rotation
    muted            true/false
    soundEnabled     true/false`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("settings takes no arguments or a key and a value, got %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var prefs slides.Preferences
		var err error
		if len(args) == 2 {
			prefs, err = slideAPI().SetPreference(cmd.Context(), args[0], args[1])
		} else {
			prefs, err = slideAPI().Preferences(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("settings: %w", err)
		}
		printPreferences(cmd.OutOrStdout(), prefs)
		return nil
	},
}

func printPreferences(w io.Writer, p slides.Preferences) {
	fmt.Fprintf(w, "glowColor      %s\n", p.GlowColor)
	fmt.Fprintf(w, "slideDuration  %d\n", p.SlideDuration)
	fmt.Fprintf(w, "muted          %t\n", p.Muted)
	fmt.Fprintf(w, "soundEnabled   %t\n", p.SoundEnabled)
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}
