package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	importWarning = "This will overwrite all current slides and settings. Are you sure?"
	resetWarning  = "Are you sure you want to reset all data? This will delete all your custom slides and settings."
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save slides and accent color to a backup file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = cfg.StoreConfig().BackupFileName()
		}

		data, err := slideAPI().Export(cmd.Context())
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if output == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", output)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace slides and accent color from a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm(cmd, importWarning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled")
			return nil
		}
		state, err := slideAPI().Import(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Slideshow restored successfully!")
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete custom slides and settings and restore the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm(cmd, resetWarning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled")
			return nil
		}
		state, err := slideAPI().Reset(cmd.Context())
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Push or restore the remote backup",
}

var backupPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the current slides to the remote backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := slideAPI().BackupPush(cmd.Context()); err != nil {
			return fmt.Errorf("backup push: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "backup pushed")
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace slides and accent color from the remote backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm(cmd, importWarning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled")
			return nil
		}
		state, err := slideAPI().BackupRestore(cmd.Context())
		if err != nil {
			return fmt.Errorf("backup restore: %w", err)
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file, - for stdout (default <namespace>-backup.json)")
	importCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	resetCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	backupRestoreCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	backupCmd.AddCommand(backupPushCmd, backupRestoreCmd)
	rootCmd.AddCommand(exportCmd, importCmd, resetCmd, backupCmd)
}
