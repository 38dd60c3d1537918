package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anime-shed/plant-inspector-go/internal/client"
)

const defaultServer = "http://localhost:3000"

type commandContext struct {
	server  string
	timeout time.Duration
	json    bool
}

func (c *commandContext) client() *client.Client {
	return client.New(c.server, c.timeout)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "plantctl",
		Short:         "Identify plants and upload photos through a plant-inspector proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	server := strings.TrimSpace(os.Getenv("PLANT_INSPECTOR_URL"))
	if server == "" {
		server = defaultServer
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.server, "server", "s", server, "Proxy base URL (env PLANT_INSPECTOR_URL)")
	rootCmd.PersistentFlags().DurationVar(&ctx.timeout, "timeout", 60*time.Second, "Overall request timeout")
	rootCmd.PersistentFlags().BoolVar(&ctx.json, "json", false, "Print raw JSON instead of tables")

	rootCmd.AddCommand(newIdentifyCommand(ctx))
	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newPolicyCommand(ctx))

	return rootCmd
}
