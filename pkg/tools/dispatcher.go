package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/metrics"
	"github.com/theapemachine/scenes/pkg/registry"
)

/*
ToolCaller calls a tool on a named external MCP server.
*/
type ToolCaller interface {
	CallTool(ctx context.Context, server, tool string, arguments map[string]any) (string, error)
}

/*
Dispatcher executes a single resolved function call against its target.
Every failure comes back as *errors.ToolExecutionFailed.
*/
type Dispatcher struct {
	functions *registry.Functions
	http      *HTTPCaller
	services  ServiceProvider
	mcp       ToolCaller
}

type DispatcherOption func(*Dispatcher)

func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	dispatcher := &Dispatcher{
		http:     NewHTTPCaller(),
		services: NewServices(),
	}

	for _, option := range options {
		option(dispatcher)
	}

	return dispatcher
}

/*
Dispatch parses the payload and sends it to the function's target.
*/
func (dispatcher *Dispatcher) Dispatch(
	ctx context.Context, function *registry.Function, payload string,
) (result string, err error) {
	start := time.Now()
	kind := string(function.Kind())

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}

		if err != nil {
			err = dispatcher.fail(function, err)
		}

		metrics.ObserveDispatch(kind, err == nil, time.Since(start))
	}()

	arguments, err := ParseArguments(payload)

	if err != nil {
		return "", err
	}

	log.Debug("dispatching", "function", function.Name, "target", function.Target())

	switch function.Kind() {
	case registry.TargetHTTP:
		return dispatcher.http.Call(ctx, function.HTTP, arguments)
	case registry.TargetService:
		service, ok := dispatcher.services.Resolve(function.Service.Name)

		if !ok {
			return "", fmt.Errorf("service %s is not registered", function.Service.Name)
		}

		return service.Invoke(ctx, arguments)
	case registry.TargetMCP:
		if dispatcher.mcp == nil {
			return "", fmt.Errorf("no mcp clients configured")
		}

		return dispatcher.mcp.CallTool(ctx, function.MCP.Server, function.MCP.Tool, arguments.Values())
	}

	return "", errors.ErrNoInvocationTarget
}

/*
DispatchByName resolves the function first. An unknown name is a tool
failure like any other, so the model can be told about it.
*/
func (dispatcher *Dispatcher) DispatchByName(
	ctx context.Context, name, payload string,
) (string, error) {
	if dispatcher.functions == nil {
		return "", &errors.ToolExecutionFailed{Tool: name, Target: "none", Err: errors.ErrMissingRegistry}
	}

	function, ok := dispatcher.functions.TryGet(name)

	if !ok {
		return "", &errors.ToolExecutionFailed{
			Tool: name, Target: "none", Err: fmt.Errorf("unknown function %s", name),
		}
	}

	return dispatcher.Dispatch(ctx, function, payload)
}

func (dispatcher *Dispatcher) fail(function *registry.Function, err error) error {
	var failed *errors.ToolExecutionFailed

	if errors.As(err, &failed) {
		return failed
	}

	log.Error("tool execution failed", "function", function.Name, "target", function.Target(), "error", err)

	return &errors.ToolExecutionFailed{
		Tool:   function.Name,
		Target: function.Target(),
		Err:    err,
	}
}

func WithFunctions(functions *registry.Functions) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.functions = functions
	}
}

func WithServices(services ServiceProvider) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.services = services
	}
}

func WithToolCaller(caller ToolCaller) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.mcp = caller
	}
}

func WithHTTPCaller(caller *HTTPCaller) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.http = caller
	}
}
