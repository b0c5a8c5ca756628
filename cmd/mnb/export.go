package main

import (
	"fmt"

	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/internal/config"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.mnb>",
	Short: "Export the Code cells of a notebook as a .synth file",
	Long: `Concatenates the Code cells of a notebook, each followed by a newline, into a
.synth file. The file is written next to the notebook unless --output is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		rt, err := newRuntime(cmd.Context(), cmd, cli.Options{Handler: config.HandlerNone, Ephemeral: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		written, err := rt.ExportFile(args[0], out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", written)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Destination file (default: <notebook>.synth)")
}
