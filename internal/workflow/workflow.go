// Package workflow implements the Workflow Runner (§4.7): composing a
// single main agent, the synthesized delegate tool, and a run-scoped
// event bus into one lazily-streamed workflow run.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/delegate"
	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/internal/sandbox"
	"github.com/agentcore/runtime/internal/session"
	"github.com/agentcore/runtime/pkg/models"
)

// MainAgentConfig is the main agent's slice of a WorkflowSchema.
type MainAgentConfig struct {
	Model        string
	SystemPrompt string
	MaxTurns     int
	Temperature  float64
}

// DelegationConfig configures the synthesized delegate tool. Delegation
// is on unless Disabled is set; a nil Schema.Delegation also leaves it on.
type DelegationConfig struct {
	Disabled         bool
	MaxConcurrent    int
	AllowedModels    []string
	MaxTurnsPerAgent int
	SubAgentTools    []agent.Tool
	// InheritTools offers the schema's SharedTools to sub-agents. A nil
	// Schema.Delegation inherits; a non-nil config inherits only when
	// this is set (the zero value is false).
	InheritTools     bool
}

// Hooks are the three workflow-lifecycle callbacks a schema may set.
type Hooks struct {
	BeforeRun func(ctx context.Context) error
	AfterRun  func(ctx context.Context, result models.WorkflowResult) error
	OnSpawn   delegate.OnSpawnHook
}

// Schema is the declarative description of one workflow.
type Schema struct {
	Name            string
	Description     string
	MainAgent       MainAgentConfig
	Providers       map[string]provider.Provider
	DefaultProvider string
	SharedTools     []agent.Tool
	Sandbox         *sandbox.Config
	Delegation      *DelegationConfig
	Hooks           Hooks
}

// Workflow is one constructed, runnable instance of a Schema.
type Workflow struct {
	schema Schema
	store  session.Store
}

// New constructs a Workflow from schema. store is used for both the main
// agent's session and any delegated sub-agent sessions; if nil, a fresh
// in-memory store is created.
func New(schema Schema, store session.Store) *Workflow {
	if store == nil {
		store = session.NewInMemory()
	}
	return &Workflow{schema: schema, store: store}
}

// Run streams the workflow's events. The channel is closed after exactly
// one workflow:completed or workflow:error event, each of which carries
// the terminal WorkflowResult.
func (w *Workflow) Run(ctx context.Context, prompt string) <-chan models.WorkflowEvent {
	out := make(chan models.WorkflowEvent, 64)

	go func() {
		defer close(out)
		w.run(ctx, prompt, out)
	}()

	return out
}

func (w *Workflow) run(ctx context.Context, prompt string, out chan<- models.WorkflowEvent) {
	runID := newRunID()
	wfBus := bus.New(nil)

	emit := func(ev models.WorkflowEvent) {
		ev.RunID = runID
		ev.Time = time.Now()
		out <- ev
	}

	emit(models.WorkflowEvent{Type: models.WorkflowEventStarted, Name: w.schema.Name, Prompt: prompt})

	if w.schema.Hooks.BeforeRun != nil {
		if err := w.schema.Hooks.BeforeRun(ctx); err != nil {
			w.fail(emit, fmt.Errorf("beforeRun hook: %w", err))
			return
		}
	}

	prov, ok := w.schema.Providers[w.schema.DefaultProvider]
	if !ok {
		w.fail(emit, fmt.Errorf("default provider %q not found", w.schema.DefaultProvider))
		return
	}

	tools := agent.NewRegistry()
	for _, t := range w.schema.SharedTools {
		if err := tools.Register(t); err != nil {
			w.fail(emit, fmt.Errorf("register shared tool: %w", err))
			return
		}
	}

	systemPrompt := w.schema.MainAgent.SystemPrompt

	var sb *sandbox.Sandbox
	if w.schema.Sandbox != nil {
		var err error
		sb, err = sandbox.New(*w.schema.Sandbox)
		if err != nil {
			w.fail(emit, fmt.Errorf("construct sandbox: %w", err))
			return
		}
		systemPrompt = appendBoilerplate(systemPrompt, fmt.Sprintf("You are operating inside a sandboxed working directory: %s.", sb.RootDir()))
	}

	delegationEnabled := w.schema.Delegation == nil || !w.schema.Delegation.Disabled
	if delegationEnabled {
		delegationCfg := DelegationConfig{InheritTools: true}
		if w.schema.Delegation != nil {
			delegationCfg = *w.schema.Delegation
		}
		factory := delegate.New(delegate.Config{
			Bus:              wfBus,
			Providers:        w.schema.Providers,
			DefaultProvider:  w.schema.DefaultProvider,
			MainAgentModel:   w.schema.MainAgent.Model,
			AllowedModels:    delegationCfg.AllowedModels,
			MaxConcurrent:    delegationCfg.MaxConcurrent,
			MaxTurnsPerAgent: delegationCfg.MaxTurnsPerAgent,
			Tools: delegate.ToolSet{
				InheritTools:  delegationCfg.InheritTools,
				Inherited:     w.schema.SharedTools,
				SubAgentTools: delegationCfg.SubAgentTools,
			},
			OnSpawn: w.schema.Hooks.OnSpawn,
			Store:   w.store,
		})
		if err := tools.Register(factory.Tool()); err != nil {
			w.fail(emit, fmt.Errorf("register delegate tool: %w", err))
			return
		}
		systemPrompt = appendBoilerplate(systemPrompt, "You may delegate focused sub-tasks to other agents using the \"delegate\" tool.")
	}

	mainAgent := agent.New(agent.Config{
		Provider:     prov,
		Model:        w.schema.MainAgent.Model,
		SystemPrompt: systemPrompt,
		Tools:        tools,
		MaxTurns:     w.schema.MainAgent.MaxTurns,
	}, w.store)

	buffer := newSubEventBuffer()
	unsubSpawned := wfBus.On(string(models.WorkflowEventAgentSpawned), buffer.push)
	unsubCompleted := wfBus.On(string(models.WorkflowEventAgentCompleted), buffer.push)
	unsubEvent := wfBus.On(string(models.WorkflowEventAgentEvent), buffer.push)
	defer func() {
		unsubSpawned()
		unsubCompleted()
		unsubEvent()
	}()

	agentEvents, err := mainAgent.Run(ctx, agent.RunOptions{Content: prompt})
	if err != nil {
		w.fail(emit, fmt.Errorf("start main agent: %w", err))
		return
	}

	var usage models.TokenUsage
	output := ""
	var finalReason models.FinishReason

	for ev := range agentEvents {
		for _, buffered := range buffer.drain() {
			emit(buffered)
		}

		if ev.Type == models.AgentEventMessage && ev.Message != nil && ev.Message.Message.Role == models.RoleAssistant {
			output = ev.Message.Message.Content
		}
		if ev.Type == models.AgentEventDone && ev.Done != nil {
			usage = usage.Add(ev.Done.Usage)
			finalReason = ev.Done.Reason
		}

		evCopy := ev
		emit(models.WorkflowEvent{Type: models.WorkflowEventAgentEvent, Name: "main", Agent: &evCopy})
	}
	for _, buffered := range buffer.drain() {
		emit(buffered)
	}

	status := models.RunStatusCompleted
	if finalReason == models.FinishCanceled {
		status = models.RunStatusCanceled
	} else if finalReason == models.FinishError {
		status = models.RunStatusError
	}

	result := models.WorkflowResult{Status: status, Output: output, Usage: usage}
	if w.schema.Hooks.AfterRun != nil {
		if err := w.schema.Hooks.AfterRun(ctx, result); err != nil {
			result.Error = err.Error()
		}
	}
	emit(models.WorkflowEvent{Type: models.WorkflowEventCompleted, Result: &result})
}

func (w *Workflow) fail(emit func(models.WorkflowEvent), err error) {
	result := models.WorkflowResult{Status: models.RunStatusError, Error: err.Error()}
	emit(models.WorkflowEvent{Type: models.WorkflowEventError, Result: &result})
}

// subEventBuffer accumulates sub-agent workflow events between main-agent
// iterations so they can be drained just before the next main-agent event
// is yielded (§4.7 step 7, §5 ordering guarantee).
type subEventBuffer struct {
	mu    sync.Mutex
	items []models.WorkflowEvent
}

func newSubEventBuffer() *subEventBuffer {
	return &subEventBuffer{}
}

func (b *subEventBuffer) push(data any) {
	ev, ok := data.(models.WorkflowEvent)
	if !ok {
		return
	}
	b.mu.Lock()
	b.items = append(b.items, ev)
	b.mu.Unlock()
}

func (b *subEventBuffer) drain() []models.WorkflowEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

func appendBoilerplate(system, addition string) string {
	if system == "" {
		return addition
	}
	return strings.TrimRight(system, "\n") + "\n\n" + addition
}

func newRunID() string {
	return agent.NewRunID()
}
