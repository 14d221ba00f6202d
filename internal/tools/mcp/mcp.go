// Package mcp bridges an external MCP (Model Context Protocol) server's
// tools into the Tool Contract, over the server's stdio transport. It is
// an example external tool implementation (tools themselves are an
// external collaborator, out of the runtime core's scope) that adapts a
// real protocol client into agent.Tool rather than hand-rolling the
// JSON-RPC framing.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentcore/runtime/internal/agent"
)

// Config configures a stdio-transport MCP bridge.
type Config struct {
	// Command is the MCP server executable.
	Command string
	// Args are passed to Command.
	Args []string
	// Env is appended to the subprocess environment as "KEY=VALUE" pairs.
	Env map[string]string
	// Filter, if non-empty, limits which of the server's tools are
	// bridged. An empty Filter bridges every tool the server lists.
	Filter []string
}

// Bridge owns one MCP stdio client connection and the Tools adapted from
// its tool listing.
type Bridge struct {
	client *mcpclient.Client
	tools  []agent.Tool
}

// Connect starts the MCP server subprocess, performs the MCP
// initialize handshake, and lists its tools. The returned Bridge owns
// the subprocess; call Close to terminate it.
func Connect(ctx context.Context, cfg Config) (*Bridge, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcp: command is required")
	}

	client, err := mcpclient.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcp: create client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: start server: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentcore", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		return nil, fmt.Errorf("mcp: initialize: %w", err)
	}

	listResp, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}

	var filterSet map[string]bool
	if len(cfg.Filter) > 0 {
		filterSet = make(map[string]bool, len(cfg.Filter))
		for _, name := range cfg.Filter {
			filterSet[name] = true
		}
	}

	tools := make([]agent.Tool, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		if filterSet != nil && !filterSet[t.Name] {
			continue
		}
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage(`{}`)
		}
		tools = append(tools, &bridgedTool{
			client:      client,
			name:        t.Name,
			description: t.Description,
			schema:      schema,
		})
	}

	return &Bridge{client: client, tools: tools}, nil
}

// Tools returns the server's tools, each adapted to the Tool Contract.
func (b *Bridge) Tools() []agent.Tool { return b.tools }

// Close terminates the MCP server subprocess.
func (b *Bridge) Close() error { return b.client.Close() }

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// bridgedTool adapts one MCP tool listing entry into agent.Tool,
// forwarding Execute to the shared client's CallTool.
type bridgedTool struct {
	client      *mcpclient.Client
	name        string
	description string
	schema      json.RawMessage
}

func (t *bridgedTool) Name() string                    { return t.name }
func (t *bridgedTool) Description() string              { return t.description }
func (t *bridgedTool) ParametersSchema() json.RawMessage { return t.schema }
func (t *bridgedTool) RequiredFields() []string          { return requiredFields(t.schema) }

func requiredFields(schema json.RawMessage) []string {
	var parsed struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil
	}
	return parsed.Required
}

func (t *bridgedTool) Execute(ctx agent.ToolContext, input json.RawMessage) (agent.ToolResult, error) {
	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return agent.ToolResult{Content: fmt.Sprintf("invalid input: %v", err), IsError: true}, nil
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	resp, err := t.client.CallTool(callCtx, req)
	if err != nil {
		return agent.ToolResult{}, fmt.Errorf("mcp: call %s: %w", t.name, err)
	}

	var texts []string
	for _, content := range resp.Content {
		if text, ok := content.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	combined := ""
	for i, text := range texts {
		if i > 0 {
			combined += "\n"
		}
		combined += text
	}

	return agent.ToolResult{Content: combined, IsError: resp.IsError}, nil
}

var _ agent.Tool = (*bridgedTool)(nil)
