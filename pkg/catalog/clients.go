package catalog

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/types"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/*
ClientRegistry maps server names to connected MCP clients. It satisfies
the dispatcher's ToolCaller, which is how external tools become local
functions.
*/
type ClientRegistry struct {
	mu        sync.RWMutex
	order     []string
	clients   map[string]Client
	connected map[string]bool
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients:   make(map[string]Client),
		connected: make(map[string]bool),
	}
}

/*
Register adds a client. A name can only be registered once.
*/
func (clients *ClientRegistry) Register(name string, mcpClient Client) error {
	clients.mu.Lock()
	defer clients.mu.Unlock()

	if _, ok := clients.clients[name]; ok {
		return &errors.DuplicateRegistration{Kind: "mcp server", Name: name}
	}

	clients.order = append(clients.order, name)
	clients.clients[name] = mcpClient
	log.Info("registered mcp server", "name", name)

	return nil
}

/*
RegisterAll builds a client per configuration with the factory and
registers it.
*/
func (clients *ClientRegistry) RegisterAll(factory Factory, configs ...ServerConfig) error {
	for _, cfg := range configs {
		mcpClient, err := factory(cfg)

		if err != nil {
			return err
		}

		if err := clients.Register(cfg.Name, mcpClient); err != nil {
			return err
		}
	}

	return nil
}

func (clients *ClientRegistry) Get(name string) (Client, bool) {
	clients.mu.RLock()
	defer clients.mu.RUnlock()

	mcpClient, ok := clients.clients[name]
	return mcpClient, ok
}

func (clients *ClientRegistry) Names() []string {
	clients.mu.RLock()
	defer clients.mu.RUnlock()

	return append([]string(nil), clients.order...)
}

/*
ConnectAll connects every server concurrently and waits for all of them.
Every connection is attempted even when one fails; the first failure is
returned once they are all done.
*/
func (clients *ClientRegistry) ConnectAll(ctx context.Context) error {
	return clients.each(func(name string, mcpClient Client) error {
		err := mcpClient.Connect(ctx)
		clients.markConnected(name, err == nil)

		if err != nil {
			log.Error("failed to connect mcp server", "name", name, "error", err)
			return err
		}

		return nil
	})
}

func (clients *ClientRegistry) markConnected(name string, connected bool) {
	clients.mu.Lock()
	defer clients.mu.Unlock()

	clients.connected[name] = connected
}

/*
Connected reports whether the last ConnectAll reached the server.
*/
func (clients *ClientRegistry) Connected(name string) bool {
	clients.mu.RLock()
	defer clients.mu.RUnlock()

	return clients.connected[name]
}

/*
Disconnected lists the registered servers that are not connected, in
registration order.
*/
func (clients *ClientRegistry) Disconnected() []string {
	clients.mu.RLock()
	defer clients.mu.RUnlock()

	out := make([]string, 0)

	for _, name := range clients.order {
		if !clients.connected[name] {
			out = append(out, name)
		}
	}

	return out
}

/*
DisconnectAll mirrors ConnectAll.
*/
func (clients *ClientRegistry) DisconnectAll(ctx context.Context) error {
	return clients.each(func(name string, mcpClient Client) error {
		clients.markConnected(name, false)

		if err := mcpClient.Disconnect(); err != nil {
			log.Error("failed to disconnect mcp server", "name", name, "error", err)
			return &ConnectionError{Server: name, Err: err}
		}

		log.Info("disconnected mcp server", "name", name)
		return nil
	})
}

func (clients *ClientRegistry) each(fn func(name string, mcpClient Client) error) error {
	var group errgroup.Group

	for _, name := range clients.Names() {
		mcpClient, _ := clients.Get(name)

		group.Go(func() error {
			return fn(name, mcpClient)
		})
	}

	return group.Wait()
}

/*
CallTool resolves the server and calls the tool on it.
*/
func (clients *ClientRegistry) CallTool(
	ctx context.Context, server, tool string, arguments map[string]any,
) (string, error) {
	mcpClient, ok := clients.Get(server)

	if !ok {
		return "", &NotFoundError{Server: server}
	}

	return mcpClient.CallTool(ctx, tool, arguments)
}

/*
ImportTools lists the tools of a connected server and registers each one
as a function with an MCP target, bound to the given scenes. A server
that is not connected is a ConnectionError.
*/
func (clients *ClientRegistry) ImportTools(
	ctx context.Context, server string, functions *registry.Functions, scenes []string,
) ([]string, error) {
	mcpClient, ok := clients.Get(server)

	if !ok {
		return nil, &NotFoundError{Server: server}
	}

	if !clients.Connected(server) {
		return nil, &ConnectionError{Server: server, Err: errNotConnected}
	}

	tools, err := mcpClient.ListTools(ctx)

	if err != nil {
		return nil, err
	}

	imported := make([]string, 0, len(tools))

	for _, tool := range tools {
		function := &registry.Function{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schemaOf(tool),
			Scenes:      scenes,
			AllScenes:   len(scenes) == 0,
			MCP:         &types.McpToolCall{Server: server, Tool: tool.Name},
		}

		if err := functions.Register(function); err != nil {
			log.Warn("skipping mcp tool", "server", server, "tool", tool.Name, "error", err)
			continue
		}

		imported = append(imported, tool.Name)
	}

	return imported, nil
}

/*
schemaOf prefers the raw schema when the server sent one.
*/
func schemaOf(tool mcp.Tool) map[string]any {
	if len(tool.RawInputSchema) > 0 {
		schema := map[string]any{}

		if err := json.Unmarshal(tool.RawInputSchema, &schema); err == nil {
			return schema
		}
	}

	schema := map[string]any{
		"type":       tool.InputSchema.Type,
		"properties": tool.InputSchema.Properties,
	}

	if tool.InputSchema.Type == "" {
		schema["type"] = "object"
	}

	if tool.InputSchema.Properties == nil {
		schema["properties"] = map[string]any{}
	}

	if len(tool.InputSchema.Required) > 0 {
		schema["required"] = tool.InputSchema.Required
	}

	return schema
}
