// Package echo provides the reference Tool implementation: it validates
// its input against the Tool contract and echoes it back, with no side
// effects. It exists to exercise the contract end-to-end in tests and to
// give new deployments a working tool to point at before wiring a real
// one.
package echo

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore/runtime/internal/agent"
)

const schema = `{
	"type": "object",
	"properties": {
		"message": {"type": "string", "description": "text to echo back"}
	},
	"required": ["message"]
}`

// Tool echoes its "message" input field back as the result content.
type Tool struct{}

// New constructs an echo Tool.
func New() *Tool { return &Tool{} }

func (Tool) Name() string        { return "echo" }
func (Tool) Description() string { return "Echoes the given message back. Useful for testing the turn loop end to end." }
func (Tool) ParametersSchema() json.RawMessage { return json.RawMessage(schema) }
func (Tool) RequiredFields() []string          { return []string{"message"} }

type input struct {
	Message string `json:"message"`
}

func (Tool) Execute(ctx agent.ToolContext, raw json.RawMessage) (agent.ToolResult, error) {
	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		return agent.ToolResult{Content: fmt.Sprintf("invalid input: %v", err), IsError: true}, nil
	}
	if in.Message == "" {
		return agent.ToolResult{Content: "message is required", IsError: true}, nil
	}
	return agent.ToolResult{Content: in.Message}, nil
}

var _ agent.Tool = Tool{}
