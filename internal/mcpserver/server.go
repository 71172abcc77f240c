// Package mcpserver exposes the registered tools over the Model Context
// Protocol using the official MCP Go SDK. It is the stdio counterpart of the
// SSE transport: both feed the same dispatcher, so results carry the same
// envelope either way.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/routewise/geomcp/internal/tool"
)

// Dispatcher executes one tool request and returns its result envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, req tool.Request) tool.Result
}

// Server wraps an MCP server whose tools mirror a [tool.Registry].
type Server struct {
	srv *mcp.Server
}

// New builds an MCP server offering every tool in the registry. Calls are
// routed through the dispatcher, and each result envelope is returned as the
// tool's text content with IsError mirroring the envelope status.
func New(name, version string, registry *tool.Registry, dispatcher Dispatcher) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("mcpserver: nil registry")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("mcpserver: nil dispatcher")
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	for _, desc := range registry.Descriptors() {
		mcp.AddTool(srv, &mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
		}, toolHandler(desc.Name, dispatcher))
	}
	return &Server{srv: srv}, nil
}

// toolHandler adapts one registered tool to the SDK handler shape.
func toolHandler(name string, dispatcher Dispatcher) mcp.ToolHandlerFor[map[string]any, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		res := dispatcher.Dispatch(ctx, tool.Request{Tool: name, Args: args})

		payload, err := json.Marshal(res)
		if err != nil {
			return nil, nil, fmt.Errorf("mcpserver: encoding result for %s: %w", name, err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
			IsError: res.Status == tool.StatusError,
		}, nil, nil
	}
}

// Run serves MCP over the given transport until the context is cancelled or
// the peer disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.srv.Run(ctx, transport)
}

// RunStdio serves MCP on stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
