package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolResult is the return shape of Tool.Execute.
type ToolResult struct {
	Content  string
	IsError  bool
	Metadata map[string]any
}

// ToolContext carries the values a tool needs beyond its raw input: the
// owning session, the run's cancellation signal, and the directory it's
// scoped to run in. AgentName holds the invoking run's id; agent.Config
// has no separate agent name to pass.
type ToolContext struct {
	Context        context.Context
	SessionID      string
	AgentName      string
	WorkingDir     string
	CallID         string
}

// Tool is a single unit of side-effecting work the turn loop can invoke.
// Name, Description, and ParametersSchema describe the tool to the
// provider; Execute performs the work.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() json.RawMessage
	RequiredFields() []string
	Execute(ctx ToolContext, input json.RawMessage) (ToolResult, error)
}

// FuncTool adapts a plain function into a Tool, the way a one-off example
// tool (echo, a filesystem watcher, an MCP-bridged call) is wired in
// without a dedicated type.
type FuncTool struct {
	ToolName        string
	ToolDescription string
	Schema          json.RawMessage
	Required        []string
	Fn              func(ctx ToolContext, input json.RawMessage) (ToolResult, error)
}

func (f *FuncTool) Name() string                    { return f.ToolName }
func (f *FuncTool) Description() string             { return f.ToolDescription }
func (f *FuncTool) ParametersSchema() json.RawMessage { return f.Schema }
func (f *FuncTool) RequiredFields() []string        { return f.Required }

func (f *FuncTool) Execute(ctx ToolContext, input json.RawMessage) (ToolResult, error) {
	return f.Fn(ctx, input)
}

// Registry holds the set of tools offered to a single agent, keyed by
// name.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool. Registration order is preserved for
// Names so tool listings stay stable across calls.
//
// It rejects tools whose ParametersSchema isn't a well-formed JSON Schema
// document, catching a malformed declaration at registration time rather
// than letting it surface as a confusing provider-side error once a turn
// tries to call the tool. This validates the schema's own shape only —
// the model's arguments are still never checked against it.
func (r *Registry) Register(t Tool) error {
	if _, err := compileParametersSchema(t.ParametersSchema()); err != nil {
		return fmt.Errorf("tool %q: invalid parameters schema: %w", t.Name(), err)
	}
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	return nil
}

var schemaCompileCache sync.Map

// compileParametersSchema compiles schema as a JSON Schema document,
// caching the result by its raw bytes so repeated registrations of the
// same tool type don't recompile it.
func compileParametersSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCompileCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.parameters.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCompileCache.Store(key, compiled)
	return compiled, nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Subset returns a new Registry containing only the named tools, in the
// order names were given, skipping names that aren't registered.
func (r *Registry) Subset(names []string) *Registry {
	sub := NewRegistry()
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			// t already passed validation in r; it cannot fail here.
			_ = sub.Register(t)
		}
	}
	return sub
}
