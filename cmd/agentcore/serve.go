package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildServeCmd is a placeholder for the HTTP/SSE façade that would sit
// in front of the Agent Manager and Workflow Manager for remote callers.
// That façade is an external collaborator, out of the runtime core's
// scope — this stub exists so the command tree names where it would
// attach.
func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "(stub) serve the Agent Manager and Workflow Manager over HTTP/SSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("serve is not implemented: the HTTP/SSE façade is an external collaborator outside the runtime core's scope")
		},
	}
}
