package jsonrpc

import (
	"bytes"
	"context"

	"github.com/theapemachine/scenes/pkg/errors"
)

/*
Router answers one request addressed to a named server.
*/
type Router interface {
	Route(ctx context.Context, server string, request *RPCRequest) RPCResponse
}

/*
Handle decodes a single request or a batch, routes every entry and encodes
the replies. It returns nil when only notifications were received.
*/
func Handle(ctx context.Context, server string, body []byte, router Router) []byte {
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		return encode(NewErrorResponse(nil, errors.ErrInvalidRequest))
	}

	if body[0] == '[' {
		var batch []RPCRequest

		if err := json.Unmarshal(body, &batch); err != nil {
			return encode(NewErrorResponse(nil, errors.ErrParseError))
		}

		if len(batch) == 0 {
			return encode(NewErrorResponse(nil, errors.ErrInvalidRequest))
		}

		responses := make([]RPCResponse, 0, len(batch))

		for idx := range batch {
			response := handle(ctx, server, &batch[idx], router)

			if !batch[idx].IsNotification() {
				responses = append(responses, response)
			}
		}

		if len(responses) == 0 {
			return nil
		}

		return encode(responses)
	}

	var request RPCRequest

	if err := json.Unmarshal(body, &request); err != nil {
		return encode(NewErrorResponse(nil, errors.ErrParseError))
	}

	response := handle(ctx, server, &request, router)

	if request.IsNotification() {
		return nil
	}

	return encode(response)
}

func handle(ctx context.Context, server string, request *RPCRequest, router Router) RPCResponse {
	if request.JSONRPC != Version {
		return NewErrorResponse(request.ID, errors.ErrInvalidRequest)
	}

	return router.Route(ctx, server, request)
}

func encode(v any) []byte {
	buf, err := json.Marshal(v)

	if err != nil {
		buf, _ = json.Marshal(NewErrorResponse(nil, errors.ErrInternal.WithMessagef("encode: %v", err)))
	}

	return buf
}
