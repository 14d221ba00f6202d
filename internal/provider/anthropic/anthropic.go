// Package anthropic adapts the Anthropic Messages API to the provider.Provider
// contract, translating its SSE event stream into provider.Event values.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/pkg/models"
)

// Config holds the settings needed to construct a Provider. Only APIKey is
// required; the rest default to values tuned for interactive agent use.
type Config struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "claude-sonnet-4-20250514"
	}
}

// Provider implements provider.Provider against Anthropic's Messages API.
type Provider struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// New validates cfg, applies defaults, and constructs a Provider backed by
// the Anthropic SDK client.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	cfg.applyDefaults()

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:       anthropic.NewClient(opts...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) SupportsTools() bool { return true }

func (p *Provider) Models() []provider.Model {
	return []provider.Model{
		{ID: "claude-sonnet-4-20250514", ContextWindow: 200000, MaxOutputTokens: 8192, SupportsVision: true, SupportsTools: true},
		{ID: "claude-opus-4-20250514", ContextWindow: 200000, MaxOutputTokens: 8192, SupportsVision: true, SupportsTools: true},
		{ID: "claude-3-5-sonnet-20241022", ContextWindow: 200000, MaxOutputTokens: 8192, SupportsVision: true, SupportsTools: true},
		{ID: "claude-3-haiku-20240307", ContextWindow: 200000, MaxOutputTokens: 4096, SupportsVision: true, SupportsTools: true},
	}
}

// maxEmptyStreamEvents guards against a malformed stream that never
// advances: this many consecutive events producing no output aborts the
// stream with an error rather than hanging the turn loop indefinitely.
const maxEmptyStreamEvents = 50

// Complete converts req into an Anthropic Messages streaming request and
// starts a goroutine translating SSE events into provider.Event values.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (<-chan provider.Event, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: convert messages: %w", err)
	}
	tools := convertTools(req.Tools)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Tools:     tools,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	events := make(chan provider.Event, 16)
	stream := p.client.Messages.NewStreaming(ctx, params)

	go p.processStream(ctx, stream, events, model)
	return events, nil
}

func (p *Provider) processStream(ctx context.Context, stream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}, events chan<- provider.Event, model string) {
	defer close(events)

	var toolID, toolName string
	var toolInput strings.Builder
	inTool := false
	emptyEvents := 0
	var usage models.TokenUsage
	finish := models.FinishEndTurn

	for stream.Next() {
		select {
		case <-ctx.Done():
			events <- provider.Event{Kind: provider.EventError, Err: ctx.Err(), Retriable: false}
			return
		default:
		}

		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				usage.InputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "thinking":
				processed = true
			case "tool_use":
				tu := block.AsToolUse()
				toolID, toolName = tu.ID, tu.Name
				toolInput.Reset()
				inTool = true
				events <- provider.Event{Kind: provider.EventToolUseStart, ToolID: toolID, ToolName: toolName}
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					events <- provider.Event{Kind: provider.EventContentDelta, Text: delta.Text}
					processed = true
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					events <- provider.Event{Kind: provider.EventThinkingDelta, Text: delta.Thinking}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					events <- provider.Event{Kind: provider.EventToolUseDelta, ToolID: toolID, ToolInputFragment: delta.PartialJSON}
					processed = true
				}
			}

		case "content_block_stop":
			if inTool {
				events <- provider.Event{Kind: provider.EventToolUseStop, ToolID: toolID, ToolInput: json.RawMessage(toolInput.String())}
				inTool = false
				processed = true
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(md.Usage.OutputTokens)
			}
			switch md.Delta.StopReason {
			case "tool_use":
				finish = models.FinishToolUse
			case "max_tokens":
				finish = models.FinishMaxTokens
			}
			processed = true

		case "message_stop":
			events <- provider.Event{Kind: provider.EventComplete, Finish: finish, Usage: usage}
			return

		case "error":
			events <- provider.Event{Kind: provider.EventError, Err: errors.New("anthropic stream error"), Retriable: true}
			return
		}

		if processed {
			emptyEvents = 0
		} else if emptyEvents++; emptyEvents >= maxEmptyStreamEvents {
			events <- provider.Event{Kind: provider.EventError, Err: fmt.Errorf("anthropic: stream appears malformed after %d empty events", emptyEvents)}
			return
		}
	}

	if err := stream.Err(); err != nil {
		events <- provider.Event{Kind: provider.EventError, Err: err, Retriable: isRetriable(err)}
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

func convertTools(tools []provider.ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.InputSchema, &schema)
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
				},
			},
		})
	}
	return out
}

// convertMessages maps the spec's Message vocabulary onto Anthropic's
// block-oriented shape: assistant tool_use blocks and a following
// user-role message carrying one tool_result block per outcome.
func convertMessages(msgs []models.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
			for _, img := range m.Images {
				if img.URL != "" {
					blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL}))
					continue
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MimeType, img.Base64))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))

		case models.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				_ = json.Unmarshal(tc.Input, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case models.RoleTool:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolResults))
			for _, r := range m.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(r.InvocationID, r.Content, r.IsError))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))

		default:
			return nil, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}
	}
	return out, nil
}
