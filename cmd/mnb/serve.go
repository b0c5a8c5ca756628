package main

import (
	"github.com/aretw0/mnb"
	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notebook store over HTTP",
	Long: `Exposes the configured notebook store as a JSON API: notebooks can be stored,
executed, exported and their execution history listed. Execution events stream
over SSE and Prometheus metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, err := newRuntime(ctx, cmd, cli.Options{})
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := rt.Config.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		tui.PrintBanner(cmd.OutOrStdout(), mnb.Version)
		return rt.Serve(ctx, addr, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (overrides server.addr)")
}
