// Package cmd provides the sitebrain CLI commands.
//
// Commands:
//   - serve: HTTP API server backed by the knowledge base
//   - crawl: one-shot site crawl and index refresh
//   - version: build information
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitebrain/sitebrain/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "sitebrain",
	Short: "Sitebrain - retrieval-augmented QA over your own site and documents",
	Long: `Sitebrain crawls a website, indexes its content together with uploaded
documents, and answers questions about them using a local Ollama model.

Run "sitebrain serve" to start the HTTP API, or "sitebrain crawl" to
refresh the index from the configured site.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG=1 lowers the level.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
