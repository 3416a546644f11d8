package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

/*
Client is one connection to an external MCP tool server.
*/
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	CallTool(ctx context.Context, tool string, arguments map[string]any) (string, error)
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

/*
MCPClient wraps an mcp-go client. The underlying client is created on
Connect, so a client can be reconnected after Disconnect.
*/
type MCPClient struct {
	mu        sync.Mutex
	name      string
	create    func() (*client.Client, error)
	needStart bool
	conn      *client.Client
}

func newMCPClient(name string, needStart bool, create func() (*client.Client, error)) *MCPClient {
	return &MCPClient{
		name:      name,
		create:    create,
		needStart: needStart,
	}
}

/*
Connect creates the transport, starts it when the transport is not self
starting, and performs the MCP initialize handshake.
*/
func (mcpClient *MCPClient) Connect(ctx context.Context) error {
	mcpClient.mu.Lock()
	defer mcpClient.mu.Unlock()

	if mcpClient.conn != nil {
		return nil
	}

	conn, err := mcpClient.create()

	if err != nil {
		return &ConnectionError{Server: mcpClient.name, Err: err}
	}

	if mcpClient.needStart {
		if err := conn.Start(ctx); err != nil {
			_ = conn.Close()
			return &ConnectionError{Server: mcpClient.name, Err: err}
		}
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "scenes",
		Version: "1.0.0",
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	serverInfo, err := conn.Initialize(ctx, initRequest)

	if err != nil {
		_ = conn.Close()
		return &ConnectionError{Server: mcpClient.name, Err: err}
	}

	log.Info(
		"connected to mcp server",
		"name", mcpClient.name,
		"serverName", serverInfo.ServerInfo.Name,
		"serverVersion", serverInfo.ServerInfo.Version,
	)

	mcpClient.conn = conn

	return nil
}

func (mcpClient *MCPClient) Disconnect() error {
	mcpClient.mu.Lock()
	defer mcpClient.mu.Unlock()

	if mcpClient.conn == nil {
		return nil
	}

	err := mcpClient.conn.Close()
	mcpClient.conn = nil

	return err
}

func (mcpClient *MCPClient) connection() (*client.Client, error) {
	mcpClient.mu.Lock()
	defer mcpClient.mu.Unlock()

	if mcpClient.conn == nil {
		return nil, fmt.Errorf("mcp server %s is not connected", mcpClient.name)
	}

	return mcpClient.conn, nil
}

/*
CallTool joins the text content of the result. A result flagged as an
error is returned as an error carrying that text.
*/
func (mcpClient *MCPClient) CallTool(
	ctx context.Context, tool string, arguments map[string]any,
) (string, error) {
	conn, err := mcpClient.connection()

	if err != nil {
		return "", err
	}

	callToolRequest := mcp.CallToolRequest{}
	callToolRequest.Params.Name = tool
	callToolRequest.Params.Arguments = arguments

	result, err := conn.CallTool(ctx, callToolRequest)

	if err != nil {
		log.Error("failed to call tool", "error", err, "server", mcpClient.name, "tool", tool)
		return "", err
	}

	text := TextOf(result)

	if result.IsError {
		return "", fmt.Errorf("tool %s reported an error: %s", tool, text)
	}

	return text, nil
}

func (mcpClient *MCPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	conn, err := mcpClient.connection()

	if err != nil {
		return nil, err
	}

	result, err := conn.ListTools(ctx, mcp.ListToolsRequest{})

	if err != nil {
		return nil, err
	}

	return result.Tools, nil
}

/*
TextOf concatenates the text parts of a tool result, one per line.
*/
func TextOf(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	parts := make([]string, 0, len(result.Content))

	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}

	return strings.Join(parts, "\n")
}
