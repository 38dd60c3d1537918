package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var direct bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a photo to object storage",
		Long: `Upload a photo. By default the proxy stores the file with its own credentials.
With --direct the proxy only signs a one-hour policy and the file goes straight
to the bucket.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			if len(data) == 0 {
				return fmt.Errorf("no file selected")
			}
			name := filepath.Base(args[0])

			var resp *models.UploadResponse
			if direct {
				resp, err = ctx.client().UploadDirect(cmd.Context(), name, data)
			} else {
				resp, err = ctx.client().Upload(cmd.Context(), name, data)
			}
			if err != nil {
				return err
			}

			if ctx.json {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s)\n%s\n", resp.Name, humanize.Bytes(uint64(resp.Size)), resp.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&direct, "direct", false, "Post straight to the bucket with a signed policy")
	return cmd
}
