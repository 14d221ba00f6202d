// Package provider defines the contract a language-model backend must
// satisfy to drive the turn loop, and the event vocabulary backends stream
// back through.
package provider

import (
	"context"
	"encoding/json"

	"github.com/agentcore/runtime/pkg/models"
)

// EventKind identifies the shape of a ProviderEvent.
type EventKind string

const (
	EventThinkingDelta EventKind = "thinking_delta"
	EventContentDelta  EventKind = "content_delta"
	EventToolUseStart  EventKind = "tool_use_start"
	EventToolUseDelta  EventKind = "tool_use_delta"
	EventToolUseStop   EventKind = "tool_use_stop"
	EventError         EventKind = "error"
	EventComplete      EventKind = "complete"
)

// Event is one increment of a streamed completion. Exactly one of the
// payload fields below is populated, matching Kind.
//
// Ordering invariants (mirrors the Anthropic/OpenAI SSE state machines
// this is adapted from): a tool_use_start always precedes any
// tool_use_delta for the same ToolID, and a tool_use_stop always follows
// the last delta for that ToolID before another tool_use_start for a
// different ID can begin. Exactly one complete (or error) terminates the
// stream.
type Event struct {
	Kind EventKind

	// EventThinkingDelta / EventContentDelta
	Text string

	// EventToolUseStart
	ToolID   string
	ToolName string

	// EventToolUseDelta — partial JSON fragment, append-order.
	ToolInputFragment string

	// EventToolUseStop — the fully assembled tool input.
	ToolInput json.RawMessage

	// EventError
	Err       error
	Retriable bool

	// EventComplete
	Finish models.FinishReason
	Usage  models.TokenUsage
}

// CompletionRequest is the backend-agnostic shape of a single turn
// request: the running message history plus the tool set currently
// offered to the model.
type CompletionRequest struct {
	Model      string
	System     string
	Messages   []models.Message
	Tools      []ToolSchema
	MaxTokens  int
	Thinking   bool
	ToolChoice string // "auto" (default), "none", or a specific tool name
}

// ToolSchema is what a Provider needs to advertise a callable tool to the
// backend: name, description, and a JSON Schema for its input.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Provider streams a single completion turn as a channel of Events. The
// channel is closed by the Provider after emitting exactly one of
// EventComplete or EventError as the final event. Complete returns an
// error only for request-construction failures that occur before
// streaming begins; mid-stream failures are delivered as an EventError
// event instead so the turn loop can fold them into its event stream
// uniformly.
type Provider interface {
	Name() string
	Models() []Model
	SupportsTools() bool
	Complete(ctx context.Context, req CompletionRequest) (<-chan Event, error)
}

// Model describes one selectable backend model.
type Model struct {
	ID             string
	ContextWindow  int
	MaxOutputTokens int
	SupportsVision bool
	SupportsTools  bool
}
