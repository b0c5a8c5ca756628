package main

import (
	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/internal/config"
	"github.com/aretw0/mnb/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <file.mnb>",
	Short: "Render a notebook in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), cmd, cli.Options{Handler: config.HandlerNone, Ephemeral: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		return rt.ShowFile(args[0], tui.NewPrinter(cmd.OutOrStdout()))
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
