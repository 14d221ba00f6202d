// Package openai adapts the OpenAI chat-completions API to the
// provider.Provider contract.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/pkg/models"
)

// Provider implements provider.Provider against the OpenAI chat-completions
// streaming API.
type Provider struct {
	client       *openai.Client
	defaultModel string
}

// New constructs a Provider for the given API key.
func New(apiKey string) *Provider {
	return &Provider{
		client:       openai.NewClient(apiKey),
		defaultModel: "gpt-4o",
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) SupportsTools() bool { return true }

func (p *Provider) Models() []provider.Model {
	return []provider.Model{
		{ID: "gpt-4o", ContextWindow: 128000, MaxOutputTokens: 16384, SupportsVision: true, SupportsTools: true},
		{ID: "gpt-4o-mini", ContextWindow: 128000, MaxOutputTokens: 16384, SupportsVision: true, SupportsTools: true},
		{ID: "o1", ContextWindow: 200000, MaxOutputTokens: 100000, SupportsVision: true, SupportsTools: true},
	}
}

func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (<-chan provider.Event, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs, err := convertMessages(req.Messages, req.System)
	if err != nil {
		return nil, fmt.Errorf("openai: convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Tools:    convertTools(req.Tools),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}

	events := make(chan provider.Event, 16)
	go processStream(ctx, stream, events)
	return events, nil
}

// processStream translates OpenAI's delta-indexed tool_calls accumulation
// into the shared tool_use_start/delta/stop vocabulary: a tool call is
// only "started" the first time its index is observed, and "stopped" once
// the finish_reason arrives (OpenAI, unlike Anthropic, does not emit a
// dedicated per-block stop event).
func processStream(ctx context.Context, stream *openai.ChatCompletionStream, events chan<- provider.Event) {
	defer close(events)
	defer stream.Close()

	type building struct {
		id, name string
		input    strings.Builder
		started  bool
	}
	calls := map[int]*building{}
	order := []int{}
	var usage models.TokenUsage
	finish := models.FinishEndTurn

	flush := func() {
		for _, idx := range order {
			b := calls[idx]
			if b == nil || b.id == "" || b.name == "" {
				continue
			}
			events <- provider.Event{Kind: provider.EventToolUseStop, ToolID: b.id, ToolInput: json.RawMessage(b.input.String())}
		}
		calls = map[int]*building{}
		order = nil
	}

	for {
		select {
		case <-ctx.Done():
			events <- provider.Event{Kind: provider.EventError, Err: ctx.Err()}
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				events <- provider.Event{Kind: provider.EventComplete, Finish: finish, Usage: usage}
				return
			}
			events <- provider.Event{Kind: provider.EventError, Err: err, Retriable: isRetriable(err)}
			return
		}

		if resp.Usage != nil {
			usage.InputTokens = resp.Usage.PromptTokens
			usage.OutputTokens = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			events <- provider.Event{Kind: provider.EventContentDelta, Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			b, ok := calls[idx]
			if !ok {
				b = &building{}
				calls[idx] = b
				order = append(order, idx)
			}
			if tc.ID != "" {
				b.id = tc.ID
			}
			if tc.Function.Name != "" {
				b.name = tc.Function.Name
			}
			if !b.started && b.id != "" && b.name != "" {
				b.started = true
				events <- provider.Event{Kind: provider.EventToolUseStart, ToolID: b.id, ToolName: b.name}
			}
			if tc.Function.Arguments != "" {
				b.input.WriteString(tc.Function.Arguments)
				if b.started {
					events <- provider.Event{Kind: provider.EventToolUseDelta, ToolID: b.id, ToolInputFragment: tc.Function.Arguments}
				}
			}
		}

		switch choice.FinishReason {
		case openai.FinishReasonToolCalls:
			flush()
			finish = models.FinishToolUse
		case openai.FinishReasonStop:
			flush()
			events <- provider.Event{Kind: provider.EventComplete, Finish: models.FinishEndTurn, Usage: usage}
			return
		case openai.FinishReasonLength:
			flush()
			events <- provider.Event{Kind: provider.EventComplete, Finish: models.FinishMaxTokens, Usage: usage}
			return
		}
	}
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "timeout")
}

func convertTools(tools []provider.ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params json.RawMessage = t.InputSchema
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// convertMessages maps the spec's Message vocabulary onto OpenAI's
// flat message list: a tool message expands to one entry per outcome,
// each carrying the ToolCallID it answers, matching OpenAI's requirement
// that every tool_call_id receive its own response message.
func convertMessages(msgs []models.Message, system string) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			if len(m.Images) == 0 {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
				continue
			}
			parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}
			for _, img := range m.Images {
				url := img.URL
				if url == "" {
					url = "data:" + img.MimeType + ";base64," + img.Base64
				}
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: url},
				})
			}
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})

		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			if len(m.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Input),
						},
					}
				}
			}
			out = append(out, oaiMsg)

		case models.RoleTool:
			for _, r := range m.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    r.Content,
					ToolCallID: r.InvocationID,
				})
			}

		default:
			return nil, fmt.Errorf("openai: unsupported role %q", m.Role)
		}
	}
	return out, nil
}
