package main

import (
	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file.mnb>",
	Short: "Execute the Code cells of a notebook",
	Long: `Executes the Code cells of a notebook file through the configured handler and
prints each result. Without --cell every Code cell runs in document order.
Transformations insert a cell below the executed one; --save writes the
outputs and inserted cells back to the file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cells, _ := cmd.Flags().GetIntSlice("cell")
		save, _ := cmd.Flags().GetBool("save")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		rt, err := newRuntime(ctx, cmd, cli.Options{Ephemeral: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		return rt.RunFile(ctx, args[0], cells, save, tui.NewPrinter(cmd.OutOrStdout()))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntSliceP("cell", "c", nil, "Index of a cell to run (repeatable)")
	runCmd.Flags().Bool("save", false, "Write outputs and inserted cells back to the notebook")
}
