package agent

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore/runtime/pkg/models"
)

// AsToolOptions customizes the synthetic tool produced by AsTool.
type AsToolOptions struct {
	Name        string
	Description string
}

var promptSchema = json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string"}},"required":["prompt"]}`)

// AsTool wraps a as a Tool whose input schema is {prompt: string}.
// Executing it runs the agent on a fresh session, drains its event
// stream, and returns the final assistant message content (or
// "(no response)" if the run produced none). The parent's cancellation
// token (carried via ToolContext.Context) is propagated to the nested
// run.
func (a *Agent) AsTool(opts AsToolOptions) Tool {
	name := opts.Name
	if name == "" {
		name = "agent"
	}
	desc := opts.Description
	if desc == "" {
		desc = fmt.Sprintf("Runs the %q agent on a prompt and returns its final response.", name)
	}

	return &FuncTool{
		ToolName:        name,
		ToolDescription: desc,
		Schema:          promptSchema,
		Required:        []string{"prompt"},
		Fn: func(tctx ToolContext, input json.RawMessage) (ToolResult, error) {
			var args struct {
				Prompt string `json:"prompt"`
			}
			if err := json.Unmarshal(input, &args); err != nil {
				return ToolResult{}, fmt.Errorf("invalid input: %w", err)
			}

			events, err := a.Run(tctx.Context, RunOptions{Content: args.Prompt})
			if err != nil {
				return ToolResult{}, err
			}

			lastContent := ""
			for ev := range events {
				if ev.Type == models.AgentEventMessage && ev.Message != nil && ev.Message.Message.Role == models.RoleAssistant {
					lastContent = ev.Message.Message.Content
				}
			}
			if lastContent == "" {
				lastContent = "(no response)"
			}
			return ToolResult{Content: lastContent}, nil
		},
	}
}
