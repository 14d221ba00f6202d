// Package models provides domain types shared by the agent runtime and the
// workflow layer.
package models

import (
	"time"
)

// AgentEvent is the unified event model emitted by the turn loop (§4.5).
// Exactly one payload field should be non-nil for a given Type.
//
// Design principles:
//   - Versioned and forward-compatible (add fields, don't rename/remove)
//   - Single Type discriminator with optional payload pointers
//   - Monotonic Sequence for ordering guarantees across goroutines
type AgentEvent struct {
	Version  int            `json:"version"`
	Type     AgentEventType `json:"type"`
	Time     time.Time      `json:"time"`
	Sequence uint64         `json:"seq"`

	RunID     string `json:"run_id,omitempty"`
	TurnIndex int    `json:"turn_index,omitempty"`

	Thinking *TextEventPayload       `json:"thinking,omitempty"`
	Content  *TextEventPayload       `json:"content,omitempty"`
	Tool     *ToolCallEventPayload   `json:"tool,omitempty"`
	Result   *ToolResultEventPayload `json:"result,omitempty"`
	Message  *MessageEventPayload    `json:"message,omitempty"`
	Done     *DoneEventPayload       `json:"done,omitempty"`
	Error    *ErrorEventPayload      `json:"error,omitempty"`
	Context  *ContextEventPayload    `json:"context,omitempty"`
	Stats    *StatsEventPayload      `json:"stats,omitempty"`
}

// AgentEventType identifies the kind of turn-loop event (§4.5 "Output").
type AgentEventType string

const (
	AgentEventThinking   AgentEventType = "thinking"
	AgentEventContent    AgentEventType = "content"
	AgentEventToolCall   AgentEventType = "toolCall"
	AgentEventToolResult AgentEventType = "toolResult"
	AgentEventMessage    AgentEventType = "message"
	AgentEventDone       AgentEventType = "done"
	AgentEventError      AgentEventType = "error"

	// AgentEventContextPacked is a supplemented diagnostic event (SPEC_FULL
	// E.3), emitted only when a history budget is configured.
	AgentEventContextPacked AgentEventType = "context.packed"
)

// FinishReason is the terminal reason carried by a done event.
type FinishReason string

const (
	FinishEndTurn   FinishReason = "end_turn"
	FinishToolUse   FinishReason = "tool_use"
	FinishMaxTokens FinishReason = "max_tokens"
	FinishStop      FinishReason = "stop"
	FinishCanceled  FinishReason = "canceled"
	FinishError     FinishReason = "error"
)

// TextEventPayload carries partial or complete text (thinking/content deltas).
type TextEventPayload struct {
	Text string `json:"text"`
}

// ToolCallEventPayload describes a finalized tool invocation (emitted once
// per invocation, at its tool_use_stop). The complete event carries no
// invocations, so none are added or emitted at complete time.
type ToolCallEventPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input []byte `json:"input"`
}

// ToolResultEventPayload carries one tool outcome.
type ToolResultEventPayload struct {
	InvocationID string `json:"invocation_id"`
	Content      string `json:"content"`
	IsError      bool   `json:"is_error,omitempty"`
}

// MessageEventPayload carries the assistant or tool message appended to the
// session at the end of a turn.
type MessageEventPayload struct {
	Message Message `json:"message"`
}

// DoneEventPayload is the terminal event payload for a run. Exactly one
// done event per run (§8 property 1).
type DoneEventPayload struct {
	Reason FinishReason `json:"reason"`
	Usage  TokenUsage   `json:"usage"`
}

// ErrorEventPayload standardizes errors for streaming consumers.
type ErrorEventPayload struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`

	// Err is the original error (runtime only, not serialized). Preserved
	// so callers can still use errors.Is/errors.As across the event
	// boundary.
	Err error `json:"-"`
}

// StatsEventPayload carries run statistics as an event (SPEC_FULL E.3).
type StatsEventPayload struct {
	Run *RunStats `json:"run,omitempty"`
}

// RunStats is an aggregated summary of an agent run, derived from the event
// stream for observability (SPEC_FULL E.3 stats collector).
type RunStats struct {
	RunID string `json:"run_id,omitempty"`

	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	WallTime   time.Duration `json:"wall_time,omitempty"`

	Turns int `json:"turns,omitempty"`

	ToolCalls    int           `json:"tool_calls,omitempty"`
	ToolWallTime time.Duration `json:"tool_wall_time,omitempty"`

	ModelWallTime time.Duration `json:"model_wall_time,omitempty"`
	InputTokens   int           `json:"input_tokens,omitempty"`
	OutputTokens  int           `json:"output_tokens,omitempty"`

	ContextPacks int `json:"context_packs,omitempty"`
	DroppedItems int `json:"dropped_items,omitempty"`

	Cancelled     bool `json:"cancelled,omitempty"`
	DroppedEvents int  `json:"dropped_events,omitempty"`

	Errors int `json:"errors,omitempty"`
}

// ContextEventPayload contains context packing diagnostics (SPEC_FULL E.3):
// it explains why certain messages were included or dropped during packing.
type ContextEventPayload struct {
	BudgetChars    int `json:"budget_chars"`
	BudgetMessages int `json:"budget_messages"`
	UsedChars      int `json:"used_chars"`
	UsedMessages   int `json:"used_messages"`

	Candidates int `json:"candidates"`
	Included   int `json:"included"`
	Dropped    int `json:"dropped"`

	SummaryUsed  bool `json:"summary_used,omitempty"`
	SummaryChars int  `json:"summary_chars,omitempty"`

	Items []ContextPackItem `json:"items,omitempty"`
}

// ContextPackItem describes a single item in a context packing decision.
type ContextPackItem struct {
	ID       string            `json:"id,omitempty"`
	Kind     ContextItemKind   `json:"kind"`
	Chars    int               `json:"chars"`
	Included bool              `json:"included"`
	Reason   ContextPackReason `json:"reason,omitempty"`
}

// ContextItemKind categorizes context items.
type ContextItemKind string

const (
	ContextItemSystem   ContextItemKind = "system"
	ContextItemHistory  ContextItemKind = "history"
	ContextItemTool     ContextItemKind = "tool"
	ContextItemSummary  ContextItemKind = "summary"
	ContextItemIncoming ContextItemKind = "incoming"
)

// ContextPackReason explains a packing decision.
type ContextPackReason string

const (
	ContextReasonIncluded   ContextPackReason = "included"
	ContextReasonReserved   ContextPackReason = "reserved"
	ContextReasonOverBudget ContextPackReason = "over_budget"
	ContextReasonTooOld     ContextPackReason = "too_old"
	ContextReasonFiltered   ContextPackReason = "filtered"
)
