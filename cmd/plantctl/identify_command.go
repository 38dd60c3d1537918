package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anime-shed/plant-inspector-go/internal/recognition"
	"github.com/anime-shed/plant-inspector-go/pkg/validation"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var expected string

	cmd := &cobra.Command{
		Use:   "identify <image>",
		Short: "Recognize the plant in a photo",
		Long: `Send a photo to the proxy and print the ranked candidates.

Examples:
  plantctl identify rose.jpg
  plantctl identify rose.jpg --expect 玫瑰     # score candidates against a label
  plantctl identify rose.jpg --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if len(data) == 0 {
				return fmt.Errorf("no image selected")
			}
			if !validation.IsImage(data) {
				return fmt.Errorf("%s is not an image (%s)", filepath.Base(args[0]), validation.DetectContentType(data))
			}

			result, err := ctx.client().Identify(cmd.Context(), data, expected)
			if err != nil {
				return err
			}

			if ctx.json {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResult(result, expected != "", isTerminal(cmd.OutOrStdout())))
			return nil
		},
	}

	cmd.Flags().StringVar(&expected, "expect", "", "Expected plant name to match against")
	return cmd
}

func renderResult(result *recognition.Result, withMatch, color bool) string {
	if len(result.Items) == 0 {
		return "No plant recognized"
	}

	out := candidateTable(result, withMatch, color)
	if result.BestMatch != nil {
		out += fmt.Sprintf("\nBest match: %s", result.BestMatch.Label)
	}
	return out
}
