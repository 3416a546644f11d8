package service

import (
	"context"
	stdjson "encoding/json"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/scenes/pkg/catalog"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/registry"
)

const serverVersion = "1.0.0"

/*
Dispatcher runs a function call.
*/
type Dispatcher interface {
	Dispatch(ctx context.Context, function *registry.Function, payload string) (string, error)
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

type callParams struct {
	Name      string             `json:"name"`
	Arguments stdjson.RawMessage `json:"arguments,omitempty"`
}

/*
MCPMethods is the method table that lets an external agent use the
functions visible to an exposure as MCP tools.
*/
func MCPMethods(functions *registry.Functions, dispatcher Dispatcher) []Method {
	return []Method{
		{Name: "initialize", Handler: initialize},
		{Name: "ping", Handler: ping},
		{Name: "notifications/initialized", Handler: ping},
		{Name: "tools/list", Handler: listTools(functions)},
		{Name: "tools/call", Handler: callTool(functions, dispatcher)},
	}
}

func initialize(ctx context.Context, exposure catalog.Exposure, params stdjson.RawMessage) (any, error) {
	return map[string]any{
		"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": mcp.Implementation{
			Name:    exposure.Name,
			Version: serverVersion,
		},
	}, nil
}

func ping(ctx context.Context, exposure catalog.Exposure, params stdjson.RawMessage) (any, error) {
	return map[string]any{}, nil
}

/*
visible returns the functions an exposure lists. An exposure without
scenes lists every function.
*/
func visible(functions *registry.Functions, exposure catalog.Exposure) []*registry.Function {
	if len(exposure.Scenes) == 0 {
		return functions.All()
	}

	return functions.InScenes(exposure.Scenes)
}

func listTools(functions *registry.Functions) Handler {
	return func(ctx context.Context, exposure catalog.Exposure, params stdjson.RawMessage) (any, error) {
		tools := make([]toolDescriptor, 0)

		for _, function := range visible(functions, exposure) {
			schema := function.Parameters

			if len(schema) == 0 {
				schema = map[string]any{"type": "object", "properties": map[string]any{}}
			}

			tools = append(tools, toolDescriptor{
				Name:        function.Name,
				Description: function.Description,
				InputSchema: schema,
			})
		}

		return map[string]any{"tools": tools}, nil
	}
}

/*
callTool dispatches the call. A failing tool is reported inside the
result with isError set, as MCP expects, not as a protocol error.
*/
func callTool(functions *registry.Functions, dispatcher Dispatcher) Handler {
	return func(ctx context.Context, exposure catalog.Exposure, params stdjson.RawMessage) (any, error) {
		var call callParams

		if err := json.Unmarshal(params, &call); err != nil || call.Name == "" {
			return nil, errors.ErrInvalidParams.WithMessagef("tools/call needs a tool name")
		}

		visibleFunctions := visible(functions, exposure)
		idx := slices.IndexFunc(visibleFunctions, func(function *registry.Function) bool {
			return function.Name == call.Name
		})

		if idx < 0 {
			return nil, errors.ErrInvalidParams.WithMessagef("unknown tool %s", call.Name)
		}

		result, err := dispatcher.Dispatch(ctx, visibleFunctions[idx], string(call.Arguments))

		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(result), nil
	}
}
