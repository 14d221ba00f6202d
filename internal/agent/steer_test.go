package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/internal/session"
	"github.com/agentcore/runtime/pkg/models"
)

// gatedProvider blocks each Complete call until the test sends a scripted
// event batch, and publishes the request it received so the test can
// synchronize with the turn loop between turns.
type gatedProvider struct {
	reqs chan provider.CompletionRequest
	next chan []provider.Event
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{reqs: make(chan provider.CompletionRequest), next: make(chan []provider.Event)}
}

func (p *gatedProvider) Name() string             { return "gated" }
func (p *gatedProvider) SupportsTools() bool       { return true }
func (p *gatedProvider) Models() []provider.Model  { return nil }

func (p *gatedProvider) Complete(ctx context.Context, req provider.CompletionRequest) (<-chan provider.Event, error) {
	p.reqs <- req
	evs := <-p.next
	ch := make(chan provider.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func TestAgent_Steer_ErrorsWithoutActiveRun(t *testing.T) {
	a := New(Config{Provider: newGatedProvider(), Model: "test-model"}, session.NewInMemory())
	if err := a.Steer("no-such-session", "hello", false); err == nil {
		t.Fatal("expected an error steering a session with no active run")
	}
}

func TestAgent_Steer_InjectsUserMessageBetweenTurns(t *testing.T) {
	p := newGatedProvider()
	tools := NewRegistry()
	tools.Register(&FuncTool{
		ToolName: "echo",
		Schema:   json.RawMessage(`{}`),
		Fn: func(ctx ToolContext, input json.RawMessage) (ToolResult, error) {
			return ToolResult{Content: string(input)}, nil
		},
	})
	a := New(Config{Provider: p, Model: "test-model", Tools: tools}, session.NewInMemory())

	events, err := a.Run(context.Background(), RunOptions{SessionID: "s1", Content: "hi"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	<-p.reqs // turn 1 request pulled
	if err := a.Steer("s1", "actually, stop", true); err != nil {
		t.Fatalf("Steer: %v", err)
	}
	p.next <- []provider.Event{
		{Kind: provider.EventToolUseStart, ToolID: "t1", ToolName: "echo"},
		{Kind: provider.EventToolUseStop, ToolID: "t1", ToolInput: json.RawMessage(`{}`)},
		{Kind: provider.EventComplete, Finish: models.FinishToolUse},
	}

	req2 := <-p.reqs // turn 2 request pulled
	p.next <- []provider.Event{
		{Kind: provider.EventContentDelta, Text: "ok"},
		{Kind: provider.EventComplete, Finish: models.FinishEndTurn},
	}

	var sawSkippedResult, sawSteeredMessage bool
	for ev := range events {
		if ev.Type == models.AgentEventToolResult && ev.Result.IsError && ev.Result.Content == "Skipped due to steering message" {
			sawSkippedResult = true
		}
	}
	for _, m := range req2.Messages {
		if m.Role == models.RoleUser && m.Content == "actually, stop" {
			sawSteeredMessage = true
		}
	}
	if !sawSkippedResult {
		t.Fatal("expected the pending tool call to be reported as skipped")
	}
	if !sawSteeredMessage {
		t.Fatalf("expected the steering text to appear as a user message in the next turn's request, got %+v", req2.Messages)
	}
}
