package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a Message in an agent conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ImageSource carries an image either inline (base64) or by URL.
type ImageSource struct {
	MimeType string `json:"mime_type,omitempty"`
	Base64   string `json:"base64,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ToolInvocation is a single tool call requested by the model. Input is the
// full serialization of the arguments, accumulated from tool_use_delta
// events between a tool_use_start and its matching tool_use_stop.
type ToolInvocation struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolOutcome is the result of executing a ToolInvocation. Every invocation
// in an assistant message produces exactly one outcome.
type ToolOutcome struct {
	InvocationID string         `json:"invocation_id"`
	Content      string         `json:"content"`
	IsError      bool           `json:"is_error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// TokenUsage is a monoid under componentwise addition.
type TokenUsage struct {
	InputTokens       int `json:"input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	CacheReadTokens   int `json:"cache_read_tokens,omitempty"`
	CacheCreateTokens int `json:"cache_create_tokens,omitempty"`
}

// Add returns the componentwise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:       u.InputTokens + o.InputTokens,
		OutputTokens:      u.OutputTokens + o.OutputTokens,
		CacheReadTokens:   u.CacheReadTokens + o.CacheReadTokens,
		CacheCreateTokens: u.CacheCreateTokens + o.CacheCreateTokens,
	}
}

// Message is immutable once appended to a Session.
//
// Invariants: assistant messages may carry ToolInvocations; tool messages
// always carry ToolOutcomes matching prior invocations by id; system
// messages are injected by the loop, never by callers.
type Message struct {
	ID          string           `json:"id"`
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Images      []ImageSource    `json:"images,omitempty"`
	ToolCalls   []ToolInvocation `json:"tool_calls,omitempty"`
	ToolResults []ToolOutcome    `json:"tool_results,omitempty"`
	Model       string           `json:"model,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Usage       *TokenUsage      `json:"usage,omitempty"`
}

// RunStatus is the lifecycle state of an agent or workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
	RunStatusCanceled  RunStatus = "canceled"
)

// RunInfo is the Agent Manager's snapshot of a single agent run.
type RunInfo struct {
	ID         string      `json:"id"`
	AgentID    string      `json:"agent_id"`
	Status     RunStatus   `json:"status"`
	Prompt     string      `json:"prompt"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
	Events     []AgentEvent `json:"events"`
	Usage      TokenUsage  `json:"usage"`
}

// SubAgentInfo describes a sub-agent spawned by the delegation tool, as
// observed by the Workflow Manager.
type SubAgentInfo struct {
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	Status       RunStatus `json:"status"`
	SpawnedAt    time.Time `json:"spawned_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	Task         string    `json:"task"`
	Output       string    `json:"output,omitempty"` // truncated to <=200 chars
	EventCount   int       `json:"event_count"`
}

// WorkflowRunInfo is the Workflow Manager's snapshot of one workflow run.
type WorkflowRunInfo struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Status       RunStatus      `json:"status"`
	Prompt       string         `json:"prompt"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at,omitempty"`
	MainAgent    AgentSnapshot  `json:"main_agent"`
	Agents       []SubAgentInfo `json:"agents"`
	Usage        TokenUsage     `json:"usage"`
	Output       string         `json:"output,omitempty"`
	RecentEvents []WorkflowEvent `json:"recent_events"`
	Error        string         `json:"error,omitempty"`
}

// AgentSnapshot is the immutable configuration recorded for a workflow's
// main agent at the moment the run started (provider/tool/delegation/sandbox
// policy snapshot per §3).
type AgentSnapshot struct {
	Model              string   `json:"model"`
	Provider           string   `json:"provider"`
	Tools              []string `json:"tools"`
	DelegationEnabled  bool     `json:"delegation_enabled"`
	SandboxRootDir     string   `json:"sandbox_root_dir,omitempty"`
}

// RingBufferCapacity is the fixed capacity of WorkflowRunInfo.RecentEvents.
const RingBufferCapacity = 200

// PermissionRequest is created by Sandbox.RequestPermission and resolved
// exactly once by grant, deny, or a 5-minute timeout.
type PermissionRequest struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Path        string    `json:"path,omitempty"`
	Command     string    `json:"command,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionDecision is the resolved outcome of a PermissionRequest.
type PermissionDecision string

const (
	PermissionGranted PermissionDecision = "granted"
	PermissionDenied  PermissionDecision = "denied"
)

// PermissionRecord is a resolved PermissionRequest, appended to the
// Sandbox's decision log.
type PermissionRecord struct {
	PermissionRequest
	Decision   PermissionDecision `json:"decision"`
	DecidedAt  time.Time          `json:"decided_at"`
	Persistent bool               `json:"persistent"`
}
