package service

import (
	"context"
	stdjson "encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/scenes/pkg/catalog"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/jsonrpc"
)

/*
Handler answers one method for the exposure a request was sent to.
Returning an *errors.RpcError sends that error as is, any other error is
reported as an internal error carrying its message.
*/
type Handler func(ctx context.Context, exposure catalog.Exposure, params stdjson.RawMessage) (any, error)

/*
Method binds a handler to its method name.
*/
type Method struct {
	Name    string
	Handler Handler
}

/*
Router maps method names to handlers. The table is built once and never
changes afterwards.
*/
type Router struct {
	servers  *catalog.ServerRegistry
	handlers map[string]Handler
}

/*
NewRouter fails when two methods share a name.
*/
func NewRouter(servers *catalog.ServerRegistry, methods ...Method) (*Router, error) {
	router := &Router{
		servers:  servers,
		handlers: make(map[string]Handler, len(methods)),
	}

	for _, method := range methods {
		if _, ok := router.handlers[method.Name]; ok {
			return nil, &errors.DuplicateRegistration{Kind: "method", Name: method.Name}
		}

		router.handlers[method.Name] = method.Handler
	}

	return router, nil
}

/*
Route resolves the exposure and the method and runs the handler. The
three failure classes stay distinct: an empty method is an invalid
request, an unknown one is not found, a failing handler is internal.
*/
func (router *Router) Route(
	ctx context.Context, server string, request *jsonrpc.RPCRequest,
) jsonrpc.RPCResponse {
	if request.Method == "" {
		return jsonrpc.NewErrorResponse(request.ID, errors.ErrInvalidRequest)
	}

	exposure, ok := router.servers.Get(server)

	if !ok {
		return jsonrpc.NewErrorResponse(request.ID, errors.ErrServerNotFound.WithMessagef("server %s not found", server))
	}

	handler, ok := router.handlers[request.Method]

	if !ok {
		return jsonrpc.NewErrorResponse(request.ID, errors.ErrMethodNotFound.WithMessagef("method %s not found", request.Method))
	}

	result, err := router.run(ctx, handler, exposure, request)

	if err != nil {
		var rpcErr *errors.RpcError

		if errors.As(err, &rpcErr) {
			return jsonrpc.NewErrorResponse(request.ID, rpcErr)
		}

		log.Error("handler failed", "server", server, "method", request.Method, "error", err)
		return jsonrpc.NewErrorResponse(request.ID, errors.ErrInternal.WithMessagef("%s", err.Error()))
	}

	return jsonrpc.NewResponse(request.ID, result)
}

func (router *Router) run(
	ctx context.Context, handler Handler, exposure catalog.Exposure, request *jsonrpc.RPCRequest,
) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%v", recovered)
		}
	}()

	return handler(ctx, exposure, request.Params)
}

/*
Methods lists the registered method names.
*/
func (router *Router) Methods() []string {
	out := make([]string, 0, len(router.handlers))

	for name := range router.handlers {
		out = append(out, name)
	}

	return out
}
