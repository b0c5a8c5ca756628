package main

import (
	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/internal/config"
	"github.com/aretw0/mnb/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <file.synth>...",
	Short: "Report language server diagnostics for .synth files",
	Long: `Starts the Syntheto language server, opens each file and prints the diagnostics
it publishes. Exits with an error when any file has error diagnostics.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, err := newRuntime(ctx, cmd, cli.Options{Handler: config.HandlerNone, Ephemeral: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		client, err := rt.StartLanguageServer(ctx)
		if err != nil {
			return err
		}
		return cli.Check(ctx, client, args, tui.NewPrinter(cmd.OutOrStdout()))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
