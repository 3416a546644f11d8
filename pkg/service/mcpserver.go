package service

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/theapemachine/scenes/pkg/catalog"
	"github.com/theapemachine/scenes/pkg/registry"
)

/*
NewMCPServer builds an mcp-go server whose tools are the functions
visible to the exposure, each dispatched through the dispatcher.
*/
func NewMCPServer(
	exposure catalog.Exposure, functions *registry.Functions, dispatcher Dispatcher,
) (*server.MCPServer, error) {
	srv := server.NewMCPServer(
		exposure.Name,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	for _, function := range visible(functions, exposure) {
		schema := function.Parameters

		if len(schema) == 0 {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		raw, err := json.Marshal(schema)

		if err != nil {
			return nil, err
		}

		srv.AddTool(
			mcp.NewToolWithRawSchema(function.Name, function.Description, raw),
			toolHandler(function, dispatcher),
		)
		log.Debug("serving tool", "server", exposure.Name, "tool", function.Name)
	}

	return srv, nil
}

func toolHandler(function *registry.Function, dispatcher Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := ""

		if arguments := request.GetArguments(); len(arguments) > 0 {
			buf, err := json.Marshal(arguments)

			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			payload = string(buf)
		}

		result, err := dispatcher.Dispatch(ctx, function, payload)

		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(result), nil
	}
}

/*
ServeStdio serves the MCP server on stdin and stdout until the input
closes.
*/
func ServeStdio(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

/*
ServeSSE serves the MCP server over SSE on addr.
*/
func ServeSSE(srv *server.MCPServer, addr string) error {
	log.Info("serving mcp over sse", "addr", addr)
	return server.NewSSEServer(srv).Start(addr)
}
