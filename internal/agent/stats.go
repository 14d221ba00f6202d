package agent

import "github.com/agentcore/runtime/pkg/models"

// CollectStats reduces a run's ordered event list into a RunStats summary
// (§4.5 supplemented stats collector). It is pure and safe to call
// repeatedly against a growing event slice; the Agent and Workflow
// Managers' RunStats methods call it. RunInfo.Usage and
// WorkflowRunInfo.Usage are accumulated separately, not through it.
func CollectStats(events []models.AgentEvent) models.RunStats {
	var stats models.RunStats
	var turnSeen = make(map[int]bool)

	for _, ev := range events {
		if stats.RunID == "" {
			stats.RunID = ev.RunID
		}
		if stats.StartedAt.IsZero() || ev.Time.Before(stats.StartedAt) {
			stats.StartedAt = ev.Time
		}
		if ev.Time.After(stats.FinishedAt) {
			stats.FinishedAt = ev.Time
		}
		if !turnSeen[ev.TurnIndex] {
			turnSeen[ev.TurnIndex] = true
			stats.Turns++
		}

		switch ev.Type {
		case models.AgentEventToolCall:
			stats.ToolCalls++
		case models.AgentEventContextPacked:
			stats.ContextPacks++
			if ev.Context != nil {
				stats.DroppedItems += ev.Context.Dropped
			}
		case models.AgentEventError:
			stats.Errors++
		case models.AgentEventDone:
			if ev.Done != nil {
				stats.InputTokens += ev.Done.Usage.InputTokens
				stats.OutputTokens += ev.Done.Usage.OutputTokens
				stats.Cancelled = stats.Cancelled || ev.Done.Reason == models.FinishCanceled
			}
		}
	}

	if !stats.StartedAt.IsZero() && !stats.FinishedAt.IsZero() {
		stats.WallTime = stats.FinishedAt.Sub(stats.StartedAt)
	}
	return stats
}
