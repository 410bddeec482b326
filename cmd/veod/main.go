package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamtide/veod/cmd/veod/commands"
	"github.com/dreamtide/veod/logger"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "veod",
	Short: "veod - AI video generation daemon",
	Long: `veod - headless core of an AI video-generation product.

It accepts text prompts, dispatches generation jobs to a remote
video-synthesis backend, polls operations until they complete or fail,
persists job state locally, and exposes the job ledger to UI clients
over HTTP/WebSocket.

Examples:
  veod serve                          # Start the daemon
  veod generate "a dragon in a forest"
  veod jobs ls --status running
  veod credits
  veod config init`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit structured JSON logs")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.CreditsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
