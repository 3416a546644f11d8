package catalog

import (
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/server"
)

/*
ServerConfig describes how to reach an external MCP server.
*/
type ServerConfig struct {
	Name      string   `mapstructure:"name"`
	Transport string   `mapstructure:"transport"`
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	Env       []string `mapstructure:"env"`
	URL       string   `mapstructure:"url"`
}

/*
Factory builds a Client from its configuration.
*/
type Factory func(cfg ServerConfig) (Client, error)

/*
NewClient is the default Factory: stdio spawns a command, sse and http
connect to a URL.
*/
func NewClient(cfg ServerConfig) (Client, error) {
	switch cfg.Transport {
	case "stdio", "":
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp server %s: stdio transport needs a command", cfg.Name)
		}

		return newMCPClient(cfg.Name, false, func() (*client.Client, error) {
			return client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
		}), nil
	case "sse":
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp server %s: sse transport needs a url", cfg.Name)
		}

		return newMCPClient(cfg.Name, true, func() (*client.Client, error) {
			return client.NewSSEMCPClient(cfg.URL)
		}), nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp server %s: http transport needs a url", cfg.Name)
		}

		return newMCPClient(cfg.Name, true, func() (*client.Client, error) {
			return client.NewStreamableHttpClient(cfg.URL)
		}), nil
	}

	return nil, fmt.Errorf("mcp server %s: unknown transport %q", cfg.Name, cfg.Transport)
}

/*
NewInProcessClient connects to an MCP server living in the same process,
which is how the stdio server of this binary can be exercised end to end.
*/
func NewInProcessClient(name string, srv *server.MCPServer) Client {
	return newMCPClient(name, true, func() (*client.Client, error) {
		return client.NewInProcessClient(srv)
	})
}
