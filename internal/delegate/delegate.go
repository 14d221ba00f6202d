// Package delegate synthesizes the "delegate" tool (§4.6): a tool that,
// when invoked by a running agent, spawns a supervised sub-agent and
// forwards its events onto a workflow-scoped bus.
package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/internal/session"
	"github.com/agentcore/runtime/pkg/models"
)

const defaultMaxConcurrent = 4
const defaultMaxTurnsPerAgent = 20

// ToolSet is what a main agent offers a spawned sub-agent in addition
// to its own delegate tool, via inheritance or an explicit extra set.
type ToolSet struct {
	InheritTools  bool // Inherited is offered only when true; the zero value is false
	Inherited     []agent.Tool
	SubAgentTools []agent.Tool
}

// OnSpawnHook is consulted before a delegation is allowed to proceed; a
// false return blocks the spawn.
type OnSpawnHook func(ctx context.Context, name, task string) bool

// Config configures the delegate tool factory for one workflow run.
type Config struct {
	Bus              *bus.Bus
	Providers        map[string]provider.Provider
	DefaultProvider  string
	MainAgentModel   string
	AllowedModels    []string // empty means unrestricted
	MaxConcurrent    int      // default 4
	MaxTurnsPerAgent int      // default 20
	Tools            ToolSet
	OnSpawn          OnSpawnHook
	Store            session.Store
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.MaxTurnsPerAgent <= 0 {
		c.MaxTurnsPerAgent = defaultMaxTurnsPerAgent
	}
	if c.Store == nil {
		c.Store = session.NewInMemory()
	}
}

type delegateInput struct {
	Name         string `json:"name"`
	Task         string `json:"task"`
	Model        string `json:"model,omitempty"`
	Provider     string `json:"provider,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

var delegateSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"task": {"type": "string"},
		"model": {"type": "string"},
		"provider": {"type": "string"},
		"systemPrompt": {"type": "string"}
	},
	"required": ["name", "task"]
}`)

// Factory builds the synthetic delegate tool and tracks how many
// sub-agents it currently has running.
type Factory struct {
	cfg    Config
	mu     sync.Mutex
	active int
}

// New constructs a Factory. cfg.Bus and cfg.Providers must be set.
func New(cfg Config) *Factory {
	cfg.applyDefaults()
	return &Factory{cfg: cfg}
}

// Tool returns the synthetic "delegate" tool for wiring into a main
// agent's Registry.
func (f *Factory) Tool() agent.Tool {
	return &agent.FuncTool{
		ToolName:        "delegate",
		ToolDescription: "Delegates a task to a named sub-agent and returns its final response.",
		Schema:          delegateSchema,
		Required:        []string{"name", "task"},
		Fn:              f.execute,
	}
}

func (f *Factory) execute(tctx agent.ToolContext, raw json.RawMessage) (agent.ToolResult, error) {
	var in delegateInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return agent.ToolResult{IsError: true, Content: fmt.Sprintf("invalid delegate input: %v", err)}, nil
	}

	if !f.tryAcquire() {
		return agent.ToolResult{IsError: true, Content: fmt.Sprintf("cannot delegate: %d sub-agents already active (max %d)", f.activeCount(), f.cfg.MaxConcurrent)}, nil
	}
	defer f.release()

	model := in.Model
	if model == "" {
		model = f.cfg.MainAgentModel
	}
	if len(f.cfg.AllowedModels) > 0 && !contains(f.cfg.AllowedModels, model) {
		return agent.ToolResult{IsError: true, Content: fmt.Sprintf("model %q is not in the allowed model list", model)}, nil
	}

	providerName := in.Provider
	if providerName == "" {
		providerName = f.cfg.DefaultProvider
	}
	prov, ok := f.cfg.Providers[providerName]
	if !ok {
		return agent.ToolResult{IsError: true, Content: fmt.Sprintf("unknown provider %q; available: %v", providerName, providerNames(f.cfg.Providers))}, nil
	}

	if f.cfg.OnSpawn != nil && !f.cfg.OnSpawn(tctx.Context, in.Name, in.Task) {
		return agent.ToolResult{IsError: true, Content: "spawn blocked by workflow policy"}, nil
	}

	f.cfg.Bus.Emit(string(models.WorkflowEventAgentSpawned), models.WorkflowEvent{
		Type:    models.WorkflowEventAgentSpawned,
		Name:    in.Name,
		Spawned: &models.AgentSpawnedPayload{Model: model, Task: in.Task},
	})

	systemPrompt := in.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf("You are a focused sub-agent named %q. Complete the task you are given and report back concisely.", in.Name)
	}

	tools := agent.NewRegistry()
	if f.cfg.Tools.InheritTools {
		for _, t := range f.cfg.Tools.Inherited {
			if err := tools.Register(t); err != nil {
				return agent.ToolResult{IsError: true, Content: fmt.Sprintf("register inherited tool: %v", err)}, nil
			}
		}
	}
	for _, t := range f.cfg.Tools.SubAgentTools {
		if err := tools.Register(t); err != nil {
			return agent.ToolResult{IsError: true, Content: fmt.Sprintf("register sub-agent tool: %v", err)}, nil
		}
	}

	sub := agent.New(agent.Config{
		Provider:     prov,
		Model:        model,
		SystemPrompt: systemPrompt,
		Tools:        tools,
		MaxTurns:     f.cfg.MaxTurnsPerAgent,
	}, f.cfg.Store)

	events, err := sub.Run(tctx.Context, agent.RunOptions{Content: in.Task})
	if err != nil {
		return agent.ToolResult{IsError: true, Content: fmt.Sprintf("Sub-agent error: %v", err)}, nil
	}

	lastContent := ""
	for ev := range events {
		f.cfg.Bus.Emit(string(models.WorkflowEventAgentEvent), models.WorkflowEvent{
			Type:  models.WorkflowEventAgentEvent,
			Name:  in.Name,
			Agent: &ev,
		})
		if ev.Type == models.AgentEventMessage && ev.Message != nil && ev.Message.Message.Role == models.RoleAssistant {
			lastContent = ev.Message.Message.Content
		}
	}

	output := lastContent
	if len(output) > 200 {
		output = output[:200]
	}
	f.cfg.Bus.Emit(string(models.WorkflowEventAgentCompleted), models.WorkflowEvent{
		Type:      models.WorkflowEventAgentCompleted,
		Name:      in.Name,
		Completed: &models.AgentCompletedPayload{Output: output},
	})

	return agent.ToolResult{Content: lastContent}, nil
}

func (f *Factory) tryAcquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active >= f.cfg.MaxConcurrent {
		return false
	}
	f.active++
	return true
}

func (f *Factory) release() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *Factory) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func providerNames(m map[string]provider.Provider) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	return out
}
