package main

import (
	"fmt"

	"github.com/aretw0/mnb"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mnb",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mnb version %s\n", mnb.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
