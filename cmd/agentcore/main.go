// Command agentcore is the CLI entry point for the agent execution core:
// a one-shot "run" against a single registered agent, a "workflow run"
// against a declarative workflow schema, and a "serve" stub marking
// where an HTTP/SSE façade would live (out of scope for the core
// itself).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree. Separated from main so tests
// can exercise it without the process-level logging/exit side effects.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "agentcore",
		Short:   "Run agents and workflows against the agent execution core",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `agentcore drives a single agent or a declarative workflow through
the turn loop, streaming its events to stdout as newline-delimited JSON.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "agentcore.yaml", "path to the YAML configuration file")

	root.AddCommand(buildRunCmd(), buildWorkflowCmd(), buildServeCmd())
	return root
}
