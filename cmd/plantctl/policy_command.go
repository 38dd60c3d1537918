package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

func newPolicyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "policy <file>",
		Short: "Show the signed form fields for a direct upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := ctx.client().Policy(cmd.Context(), filepath.Base(args[0]))
			if err != nil {
				return err
			}
			if ctx.json {
				return writeJSON(cmd, policy)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPolicy(policy))
			return nil
		},
	}
}

func renderPolicy(policy *models.PolicyResponse) string {
	names := make([]string, 0, len(policy.Fields))
	for name := range policy.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][2]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, [2]string{name, policy.Fields[name]})
	}

	return fmt.Sprintf("POST %s\nExpires %s (%s)\n%s",
		policy.UploadURL,
		policy.Expiration.UTC().Format("2006-01-02 15:04:05 MST"),
		humanize.Time(policy.Expiration),
		fieldTable(rows),
	)
}
