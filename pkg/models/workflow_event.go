package models

import "time"

// WorkflowEventType identifies the kind of event emitted on a workflow's
// run-scoped event bus (§4.7, §4.9).
type WorkflowEventType string

const (
	WorkflowEventStarted   WorkflowEventType = "workflow:started"
	WorkflowEventCompleted WorkflowEventType = "workflow:completed"
	WorkflowEventError     WorkflowEventType = "workflow:error"
	WorkflowEventAgentSpawned   WorkflowEventType = "agent:spawned"
	WorkflowEventAgentCompleted WorkflowEventType = "agent:completed"
	WorkflowEventAgentEvent     WorkflowEventType = "agent:event"
)

// WorkflowEvent is published on a workflow's run-scoped Event Bus and
// observed by the Workflow Manager (§4.9) to materialize WorkflowRunInfo.
type WorkflowEvent struct {
	Type  WorkflowEventType `json:"type"`
	Time  time.Time         `json:"time"`
	RunID string            `json:"run_id"`

	// Name is the sub-agent name for agent:spawned/agent:completed/agent:event,
	// or "main" for agent:event entries forwarded from the main agent.
	Name string `json:"name,omitempty"`

	// Spawned carries the sub-agent's model and task, for agent:spawned.
	Spawned *AgentSpawnedPayload `json:"spawned,omitempty"`

	// Completed carries the truncated output, for agent:completed.
	Completed *AgentCompletedPayload `json:"completed,omitempty"`

	// Agent carries a forwarded AgentEvent, for agent:event.
	Agent *AgentEvent `json:"agent,omitempty"`

	// Result carries the final WorkflowResult, for workflow:completed and
	// workflow:error.
	Result *WorkflowResult `json:"result,omitempty"`

	// Prompt is the original run prompt, for workflow:started.
	Prompt string `json:"prompt,omitempty"`
}

// AgentSpawnedPayload describes a newly spawned sub-agent.
type AgentSpawnedPayload struct {
	Model string `json:"model"`
	Task  string `json:"task"`
}

// AgentCompletedPayload carries a sub-agent's truncated output.
type AgentCompletedPayload struct {
	Output string `json:"output"`
}

// WorkflowResult is the terminal payload of a workflow run.
type WorkflowResult struct {
	Status RunStatus  `json:"status"`
	Output string     `json:"output,omitempty"`
	Usage  TokenUsage `json:"usage"`
	Error  string     `json:"error,omitempty"`
}
