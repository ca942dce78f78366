package cmd

import (
	"fmt"
	"strconv"

	"github.com/aouyang1/quoteframe/slideshow"
	"github.com/spf13/cobra"
)

func navigateCmd(use, short string, move func(SlideAPI, *cobra.Command) (slideshow.State, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := move(slideAPI(), cmd)
			if err != nil {
				return fmt.Errorf("%s: %w", cmd.Name(), err)
			}
			printState(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

var nextCmd = navigateCmd("next", "Show the next slide", func(a SlideAPI, cmd *cobra.Command) (slideshow.State, error) {
	return a.Next(cmd.Context())
})

var previousCmd = navigateCmd("previous", "Show the previous slide", func(a SlideAPI, cmd *cobra.Command) (slideshow.State, error) {
	return a.Previous(cmd.Context())
})

var gotoCmd = &cobra.Command{
	Use:   "goto <index>",
	Short: "Show the slide at index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("goto: invalid index %q", args[0])
		}
		state, err := slideAPI().GoTo(cmd.Context(), index)
		if err != nil {
			return fmt.Errorf("goto: %w", err)
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nextCmd, previousCmd, gotoCmd)
}
