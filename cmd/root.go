// Package cmd wires the CLI commands: serve, vectorize and token.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zk-jackie/campusqa/internal/log"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "campusqa",
	Short: "campusqa - AI guide for the GDOU campus",
	Long: `campusqa answers student questions about the GDOU campus.

It serves an HTTP API with streaming chat surfaces, backed by a
tool-calling model, a local knowledge index and web search.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Version = Version
}

// newLogger builds the process logger honoring the verbose flag.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: os.Getenv("CAMPUSQA_LOG_JSON") != ""})
	slog.SetDefault(logger)
	return logger
}
