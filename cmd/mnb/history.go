package main

import (
	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/internal/config"
	"github.com/aretw0/mnb/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "List recorded executions of a stored notebook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		rt, err := newRuntime(cmd.Context(), cmd, cli.Options{Handler: config.HandlerNone})
		if err != nil {
			return err
		}
		defer rt.Close()

		entries, err := rt.Engine.History(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		tui.NewPrinter(cmd.OutOrStdout()).PrintHistory(entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
}
