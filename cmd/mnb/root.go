package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/mnb/internal/cli"
	"github.com/aretw0/mnb/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mnb",
	Short: "mnb runs MIDAS notebooks against the Syntheto language server",
	Long: `mnb executes the Code cells of MIDAS notebooks (.mnb), renders them in the
terminal, exports them as .synth sources and serves them over HTTP and MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultFile, "Path to the mnb.yaml configuration")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "Shorthand for --log-level debug")
}

// newRuntime loads the configuration and builds the engine for a command.
func newRuntime(ctx context.Context, cmd *cobra.Command, opts cli.Options) (*cli.Runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		opts.LogLevel = level
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		opts.LogLevel = "debug"
	}
	return cli.Build(ctx, cfg, opts)
}
