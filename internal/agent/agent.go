// Package agent implements the turn loop: the state machine driving a
// streaming conversation between a provider and a set of tools.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/agentcore/runtime/internal/metrics"
	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/internal/session"
	"github.com/agentcore/runtime/internal/trace"
	"github.com/agentcore/runtime/pkg/models"
)

const defaultMaxTurns = 50

// Config is the agent's static configuration: provider, model, system
// prompt, tool set, and turn/token budgets. It is shared across runs.
type Config struct {
	Provider     provider.Provider
	Model        string
	SystemPrompt string
	Tools        *Registry
	MaxTurns     int
	MaxTokens    int
	Temperature  float64
	WorkingDir   string

	// MaxHistoryChars, when set, caps the session history sent to the
	// provider each turn to roughly this many characters, dropping the
	// oldest messages first and emitting an AgentEventContextPacked
	// diagnostic event whenever it actually trims something.
	MaxHistoryChars int

	// Observer receives every event emitted by every run of this agent,
	// synchronously. Exceptions are swallowed.
	Observer func(models.AgentEvent)

	// Metrics and Tracer are optional observability collaborators. A nil
	// Metrics falls back to metrics.NoopRecorder{}; a nil Tracer means no
	// spans are created.
	Metrics metrics.Recorder
	Tracer  *trace.Tracer
}

func (c *Config) applyDefaults() {
	if c.MaxTurns <= 0 {
		c.MaxTurns = defaultMaxTurns
	}
	if c.Tools == nil {
		c.Tools = NewRegistry()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NoopRecorder{}
	}
}

// RunOptions configures a single run.
type RunOptions struct {
	Content   string
	Images    []models.ImageSource
	SessionID string // empty creates a fresh session

	// Observer receives every event from this run only, in addition to
	// the config-level Observer.
	Observer func(models.AgentEvent)
}

// Agent drives the turn loop over a Config against a session store.
type Agent struct {
	cfg   Config
	store session.Store

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	seq     uint64

	steeringMu sync.Mutex
	steering   map[string][]*steerMessage
}

// New constructs an Agent. store must not be nil.
func New(cfg Config, store session.Store) *Agent {
	cfg.applyDefaults()
	return &Agent{
		cfg:     cfg,
		store:   store,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Cancel triggers the internal cancellation token for the run currently
// bound to sessionID, if any. A no-op if the session has no active run.
func (a *Agent) Cancel(sessionID string) {
	a.mu.Lock()
	cancel, ok := a.cancels[sessionID]
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

// Run starts a turn loop and returns a channel of AgentEvents. The channel
// is closed after exactly one done event has been emitted.
func (a *Agent) Run(ctx context.Context, opts RunOptions) (<-chan models.AgentEvent, error) {
	if a.cfg.Provider == nil {
		return nil, fmt.Errorf("agent: no provider configured")
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancels[sessionID] = cancel
	a.mu.Unlock()

	runID := NewRunID()
	events := make(chan models.AgentEvent, 64)
	startedAt := time.Now()

	emit := func(ev models.AgentEvent) {
		ev.Sequence = a.nextSeq()
		ev.Time = time.Now()
		ev.RunID = runID
		events <- ev
		a.notify(opts.Observer, ev)
		if ev.Type == models.AgentEventDone && ev.Done != nil {
			a.cfg.Metrics.RunCompleted(runID, a.cfg.Model, doneStatus(ev.Done.Reason), time.Since(startedAt).Seconds(), ev.Done.Usage.InputTokens, ev.Done.Usage.OutputTokens)
		}
	}
	a.cfg.Metrics.RunStarted(runID, a.cfg.Model)

	go func() {
		defer close(events)
		defer func() {
			a.mu.Lock()
			delete(a.cancels, sessionID)
			a.mu.Unlock()
			a.steeringMu.Lock()
			delete(a.steering, sessionID)
			a.steeringMu.Unlock()
			cancel()
		}()

		userMsg := models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleUser,
			Content:   opts.Content,
			Images:    opts.Images,
			CreatedAt: time.Now(),
		}
		if err := a.store.AddMessage(runCtx, sessionID, userMsg); err != nil {
			emit(errorEvent(0, fmt.Errorf("append user message: %w", err)))
			emit(doneEvent(0, models.FinishError, models.TokenUsage{}))
			return
		}

		a.runTurns(runCtx, sessionID, runID, emit)
	}()

	return events, nil
}

func (a *Agent) runTurns(ctx context.Context, sessionID, runID string, emit func(models.AgentEvent)) {
	var totalUsage models.TokenUsage

	for turn := 0; turn < a.cfg.MaxTurns; turn++ {
		if ctx.Err() != nil {
			emit(doneEvent(turn, models.FinishCanceled, totalUsage))
			return
		}

		messages, err := a.store.GetMessages(ctx, sessionID)
		if err != nil {
			emit(errorEvent(turn, fmt.Errorf("load session: %w", err)))
			emit(doneEvent(turn, models.FinishError, totalUsage))
			return
		}

		if packed, diag, trimmed := packHistory(messages, a.cfg.MaxHistoryChars); trimmed {
			messages = packed
			emit(models.AgentEvent{Type: models.AgentEventContextPacked, TurnIndex: turn, Context: &diag})
		}

		req := provider.CompletionRequest{
			Model:     a.cfg.Model,
			System:    a.cfg.SystemPrompt,
			Messages:  messages,
			Tools:     toolSchemas(a.cfg.Tools),
			MaxTokens: a.cfg.MaxTokens,
		}

		spanCtx := ctx
		var span oteltrace.Span
		if a.cfg.Tracer != nil {
			spanCtx, span = a.cfg.Tracer.StartProviderRequest(ctx, a.cfg.Provider.Name(), a.cfg.Model)
		}

		stream, err := a.cfg.Provider.Complete(spanCtx, req)
		if err != nil {
			if span != nil {
				a.cfg.Tracer.RecordError(span, err)
				span.End()
			}
			if ctx.Err() != nil {
				emit(doneEvent(turn, models.FinishCanceled, totalUsage))
				return
			}
			emit(errorEvent(turn, err))
			emit(doneEvent(turn, models.FinishError, totalUsage))
			return
		}

		assembled, streamErred := a.consumeStream(ctx, turn, stream, emit)
		if span != nil {
			if streamErred && ctx.Err() == nil {
				a.cfg.Tracer.RecordError(span, fmt.Errorf("provider stream error"))
			}
			span.End()
		}
		if streamErred && ctx.Err() != nil {
			emit(doneEvent(turn, models.FinishCanceled, totalUsage))
			return
		}

		totalUsage = totalUsage.Add(assembled.usage)

		assistantMsg := models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   assembled.content,
			ToolCalls: assembled.invocations,
			Model:     a.cfg.Model,
			CreatedAt: time.Now(),
			Usage:     &assembled.usage,
		}
		if err := a.store.AddMessage(ctx, sessionID, assistantMsg); err != nil {
			emit(errorEvent(turn, fmt.Errorf("append assistant message: %w", err)))
			emit(doneEvent(turn, models.FinishError, totalUsage))
			return
		}
		emit(models.AgentEvent{Type: models.AgentEventMessage, TurnIndex: turn, Message: &models.MessageEventPayload{Message: assistantMsg}})

		if len(assembled.invocations) == 0 || assembled.finish != models.FinishToolUse {
			emit(doneEvent(turn, assembled.finish, totalUsage))
			return
		}

		steer := a.takeSteering(sessionID)

		var outcomes []models.ToolOutcome
		if steer != nil && steer.skipRemainingTools {
			outcomes = skippedOutcomes(assembled.invocations)
			for _, o := range outcomes {
				emit(models.AgentEvent{Type: models.AgentEventToolResult, TurnIndex: turn, Result: &models.ToolResultEventPayload{InvocationID: o.InvocationID, Content: o.Content, IsError: o.IsError}})
			}
		} else {
			outcomes = a.executeTools(ctx, sessionID, runID, turn, assembled.invocations, emit)
		}

		toolMsg := models.Message{
			ID:          uuid.NewString(),
			Role:        models.RoleTool,
			Content:     joinOutcomes(outcomes),
			ToolResults: outcomes,
			CreatedAt:   time.Now(),
		}
		if err := a.store.AddMessage(ctx, sessionID, toolMsg); err != nil {
			emit(errorEvent(turn, fmt.Errorf("append tool message: %w", err)))
			emit(doneEvent(turn, models.FinishError, totalUsage))
			return
		}

		if steer != nil {
			steerMsg := models.Message{
				ID:        uuid.NewString(),
				Role:      models.RoleUser,
				Content:   steer.text,
				CreatedAt: time.Now(),
			}
			if err := a.store.AddMessage(ctx, sessionID, steerMsg); err != nil {
				emit(errorEvent(turn, fmt.Errorf("append steering message: %w", err)))
				emit(doneEvent(turn, models.FinishError, totalUsage))
				return
			}
		}
	}

	emit(doneEvent(a.cfg.MaxTurns, models.FinishMaxTokens, totalUsage))
}

type assembledTurn struct {
	content     string
	invocations []models.ToolInvocation
	finish      models.FinishReason
	usage       models.TokenUsage
}

// consumeStream accumulates one turn's provider events, emitting thinking,
// content, and toolCall events as they resolve. It returns true for its
// second result if the provider signaled an error mid-stream or ctx was
// canceled while the stream was being read.
func (a *Agent) consumeStream(ctx context.Context, turn int, stream <-chan provider.Event, emit func(models.AgentEvent)) (assembledTurn, bool) {
	var content strings.Builder
	var invocations []models.ToolInvocation
	seen := make(map[string]bool)

	type pending struct {
		name  string
		input strings.Builder
	}
	open := make(map[string]*pending)
	var finish models.FinishReason = models.FinishEndTurn
	var usage models.TokenUsage

	for ev := range stream {
		select {
		case <-ctx.Done():
			return assembledTurn{content: content.String(), invocations: invocations, finish: models.FinishCanceled, usage: usage}, true
		default:
		}

		switch ev.Kind {
		case provider.EventThinkingDelta:
			emit(models.AgentEvent{Type: models.AgentEventThinking, TurnIndex: turn, Thinking: &models.TextEventPayload{Text: ev.Text}})

		case provider.EventContentDelta:
			content.WriteString(ev.Text)
			emit(models.AgentEvent{Type: models.AgentEventContent, TurnIndex: turn, Content: &models.TextEventPayload{Text: ev.Text}})

		case provider.EventToolUseStart:
			open[ev.ToolID] = &pending{name: ev.ToolName}

		case provider.EventToolUseDelta:
			if p, ok := open[ev.ToolID]; ok {
				p.input.WriteString(ev.ToolInputFragment)
			}

		case provider.EventToolUseStop:
			p, ok := open[ev.ToolID]
			name := ""
			if ok {
				name = p.name
			}
			input := ev.ToolInput
			if input == nil && ok {
				input = json.RawMessage(p.input.String())
			}
			inv := models.ToolInvocation{ID: ev.ToolID, Name: name, Input: input}
			invocations = append(invocations, inv)
			seen[ev.ToolID] = true
			delete(open, ev.ToolID)
			emit(models.AgentEvent{Type: models.AgentEventToolCall, TurnIndex: turn, Tool: &models.ToolCallEventPayload{ID: inv.ID, Name: inv.Name, Input: inv.Input}})

		case provider.EventComplete:
			finish = ev.Finish
			usage = ev.Usage

		case provider.EventError:
			emit(errorEvent(turn, ev.Err))
			return assembledTurn{content: content.String(), invocations: invocations, finish: finish, usage: usage}, true
		}
	}

	return assembledTurn{content: content.String(), invocations: invocations, finish: finish, usage: usage}, false
}

// executeTools runs invocations sequentially in source order, synthesizing
// outcomes for cancellation and unknown tools rather than calling them.
func (a *Agent) executeTools(ctx context.Context, sessionID, runID string, turn int, invocations []models.ToolInvocation, emit func(models.AgentEvent)) []models.ToolOutcome {
	outcomes := make([]models.ToolOutcome, 0, len(invocations))
	for _, inv := range invocations {
		var outcome models.ToolOutcome
		switch {
		case ctx.Err() != nil:
			outcome = models.ToolOutcome{InvocationID: inv.ID, Content: "Canceled", IsError: true}

		default:
			tool, ok := a.cfg.Tools.Get(inv.Name)
			if !ok {
				outcome = models.ToolOutcome{InvocationID: inv.ID, Content: fmt.Sprintf("Unknown tool: %s", inv.Name), IsError: true}
				break
			}
			outcome = a.callTool(ctx, tool, sessionID, runID, inv)
		}
		outcomes = append(outcomes, outcome)
		emit(models.AgentEvent{
			Type:      models.AgentEventToolResult,
			TurnIndex: turn,
			Result: &models.ToolResultEventPayload{
				InvocationID: outcome.InvocationID,
				Content:      outcome.Content,
				IsError:      outcome.IsError,
			},
		})
	}
	return outcomes
}

func (a *Agent) callTool(ctx context.Context, tool Tool, sessionID, runID string, inv models.ToolInvocation) (outcome models.ToolOutcome) {
	start := time.Now()
	toolCtx := ctx
	var span oteltrace.Span
	if a.cfg.Tracer != nil {
		toolCtx, span = a.cfg.Tracer.StartToolExecution(ctx, inv.Name, inv.ID)
	}
	defer func() {
		status := "success"
		if outcome.IsError {
			status = "error"
		}
		a.cfg.Metrics.ToolExecution(inv.Name, status, time.Since(start).Seconds())
		if span != nil {
			if outcome.IsError {
				a.cfg.Tracer.RecordError(span, fmt.Errorf("%s", outcome.Content))
			}
			span.End()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			outcome = models.ToolOutcome{InvocationID: inv.ID, Content: fmt.Sprintf("tool panic: %v", r), IsError: true}
		}
	}()

	res, err := tool.Execute(ToolContext{
		Context:    toolCtx,
		SessionID:  sessionID,
		AgentName:  runID,
		WorkingDir: a.cfg.WorkingDir,
		CallID:     inv.ID,
	}, inv.Input)
	if err != nil {
		return models.ToolOutcome{InvocationID: inv.ID, Content: err.Error(), IsError: true}
	}
	return models.ToolOutcome{InvocationID: inv.ID, Content: res.Content, IsError: res.IsError, Metadata: res.Metadata}
}

// skippedOutcomes synthesizes a skipped-tool outcome for each invocation,
// used when a steering message arrives with skipRemainingTools set.
func skippedOutcomes(invocations []models.ToolInvocation) []models.ToolOutcome {
	outcomes := make([]models.ToolOutcome, len(invocations))
	for i, inv := range invocations {
		outcomes[i] = models.ToolOutcome{InvocationID: inv.ID, Content: "Skipped due to steering message", IsError: true}
	}
	return outcomes
}

func (a *Agent) notify(runObserver func(models.AgentEvent), ev models.AgentEvent) {
	for _, observer := range []func(models.AgentEvent){a.cfg.Observer, runObserver} {
		if observer == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			observer(ev)
		}()
	}
}

func (a *Agent) nextSeq() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

func errorEvent(turn int, err error) models.AgentEvent {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return models.AgentEvent{Type: models.AgentEventError, TurnIndex: turn, Error: &models.ErrorEventPayload{Message: msg, Err: err}}
}

func doneEvent(turn int, reason models.FinishReason, usage models.TokenUsage) models.AgentEvent {
	return models.AgentEvent{Type: models.AgentEventDone, TurnIndex: turn, Done: &models.DoneEventPayload{Reason: reason, Usage: usage}}
}

func doneStatus(reason models.FinishReason) string {
	switch reason {
	case models.FinishCanceled:
		return "canceled"
	case models.FinishError:
		return "error"
	default:
		return "completed"
	}
}

func joinOutcomes(outcomes []models.ToolOutcome) string {
	parts := make([]string, len(outcomes))
	for i, o := range outcomes {
		parts[i] = o.Content
	}
	return strings.Join(parts, "\n\n")
}

func toolSchemas(reg *Registry) []provider.ToolSchema {
	names := reg.Names()
	out := make([]provider.ToolSchema, 0, len(names))
	for _, name := range names {
		t, _ := reg.Get(name)
		out = append(out, provider.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.ParametersSchema(),
		})
	}
	return out
}

// NewRunID returns an opaque, URL-safe, roughly 12-character run
// identifier (no wire format is defined by the core itself).
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
