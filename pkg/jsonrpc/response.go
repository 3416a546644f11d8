package jsonrpc

import (
	stdjson "encoding/json"

	"github.com/theapemachine/scenes/pkg/errors"
)

type RPCResponse struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      stdjson.RawMessage `json:"id,omitempty"`
	Result  any                `json:"result,omitempty"`
	Error   *errors.RpcError   `json:"error,omitempty"`
}

func NewResponse(id stdjson.RawMessage, result any) RPCResponse {
	return RPCResponse{JSONRPC: Version, ID: id, Result: result}
}

func NewErrorResponse(id stdjson.RawMessage, err *errors.RpcError) RPCResponse {
	return RPCResponse{JSONRPC: Version, ID: id, Error: err}
}
