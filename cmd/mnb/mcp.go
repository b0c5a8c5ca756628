package main

import (
	"github.com/aretw0/mnb"
	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the notebook engine as an MCP server over standard input/output, so
agents can list notebooks, inspect cells, run them and export .synth sources.
Exports to files are confined to the workspace directory.
Logs go to log.file only; stdout carries the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), cmd, cli.Options{Quiet: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		rt.Logger.Info("Starting MCP server (stdio)")
		return mcp.NewServer(rt.Engine, mnb.Version,
			mcp.WithLogger(rt.Logger),
			mcp.WithExportDir(rt.Workspace()),
		).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
