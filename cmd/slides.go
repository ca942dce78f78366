package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aouyang1/quoteframe/slides"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the slides in display order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		all, err := slideAPI().Slides(ctx)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		state, err := slideAPI().State(ctx)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintln(w, "no slides")
			return nil
		}
		for i, s := range all {
			marker := " "
			if i == state.Index {
				marker = "*"
			}
			quote, _, _ := strings.Cut(s.Quote, "\n")
			fmt.Fprintf(w, "%s %3d  %s  (%s)\n", marker, i, quote, s.Author)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a slide and show it",
	Long: `Add a slide from an image URL or a local image file and show it.

EXAMPLES:
    quoteframe add --image ./lotus.jpg --quote "Arise, awake" --author "Katha Upanishad"
    quoteframe add --image https://example.com/a.jpg --quote "..." --author "..."`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	image, _ := cmd.Flags().GetString("image")
	quote, _ := cmd.Flags().GetString("quote")
	author, _ := cmd.Flags().GetString("author")

	slide := slides.Slide{ImageURL: image, Quote: quote, Author: author}
	if err := slide.Validate(); err != nil {
		return fmt.Errorf("add: %w", err)
	}

	var err error
	var index int
	if info, statErr := os.Stat(image); statErr == nil && !info.IsDir() {
		resp, uploadErr := slideAPI().UploadSlide(cmd.Context(), image, quote, author)
		index, err = resp.Index, uploadErr
	} else {
		resp, addErr := slideAPI().AddSlide(cmd.Context(), slide)
		index, err = resp.Index, addErr
	}
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added slide %d\n", index)
	return nil
}

var removeCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove the slide at index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("remove: invalid index %q", args[0])
		}
		state, err := slideAPI().RemoveSlide(cmd.Context(), index)
		if err != nil {
			return fmt.Errorf("remove: %w", err)
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a Vedic quote slide and show it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := slideAPI().GenerateSlide(cmd.Context())
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added slide %d: %s (%s)\n", resp.Index, resp.Slide.Quote, resp.Slide.Author)
		return nil
	},
}

func init() {
	addCmd.Flags().String("image", "", "image URL or path to a local image file")
	addCmd.Flags().String("quote", "", "quote text")
	addCmd.Flags().String("author", "", "quote author")

	rootCmd.AddCommand(listCmd, addCmd, removeCmd, generateCmd)
}
