package agent

import (
	"unicode/utf8"

	"github.com/agentcore/runtime/pkg/models"
)

// packHistory trims messages to fit within maxChars, keeping the most
// recent messages and dropping older ones first. It returns the packed
// slice and a diagnostics payload describing the decision; ok is false
// when no trimming was necessary (the caller should skip emitting the
// event in that case).
//
// Budgeting is by rune count of Content plus each ToolResult's Content,
// a cheap proxy for token count good enough for a soft history cap
// (§4.5 supplemented context/packing diagnostics).
func packHistory(messages []models.Message, maxChars int) ([]models.Message, models.ContextEventPayload, bool) {
	if maxChars <= 0 {
		return messages, models.ContextEventPayload{}, false
	}

	sizes := make([]int, len(messages))
	total := 0
	for i, m := range messages {
		sizes[i] = messageChars(m)
		total += sizes[i]
	}
	if total <= maxChars {
		return messages, models.ContextEventPayload{}, false
	}

	items := make([]models.ContextPackItem, len(messages))
	keepFrom := len(messages)
	used := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if used+sizes[i] > maxChars {
			break
		}
		used += sizes[i]
		keepFrom = i
	}

	for i, m := range messages {
		included := i >= keepFrom
		reason := models.ContextReasonTooOld
		if included {
			reason = models.ContextReasonIncluded
		}
		items[i] = models.ContextPackItem{
			ID:       m.ID,
			Kind:     contextKindFor(m),
			Chars:    sizes[i],
			Included: included,
			Reason:   reason,
		}
	}

	packed := messages[keepFrom:]
	diag := models.ContextEventPayload{
		BudgetChars:  maxChars,
		UsedChars:    used,
		UsedMessages: len(packed),
		Candidates:   len(messages),
		Included:     len(packed),
		Dropped:      len(messages) - len(packed),
		Items:        items,
	}
	return packed, diag, true
}

func messageChars(m models.Message) int {
	n := utf8.RuneCountInString(m.Content)
	for _, tr := range m.ToolResults {
		n += utf8.RuneCountInString(tr.Content)
	}
	return n
}

func contextKindFor(m models.Message) models.ContextItemKind {
	if m.Role == models.RoleTool {
		return models.ContextItemTool
	}
	return models.ContextItemHistory
}
