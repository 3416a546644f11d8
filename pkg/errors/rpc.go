package errors

import (
	"fmt"
)

/*
RpcError represents a JSON-RPC error response.
*/
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

/*
Error implements the error interface for RpcError.
*/
func (e *RpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Convenience errors (JSON‑RPC reserved codes  -32700 .. -32603)
// Application specific codes should use other ranges.
var (
	ErrParseError     = &RpcError{Code: -32700, Message: "Parse error"}
	ErrInvalidRequest = &RpcError{Code: -32600, Message: "Invalid Request"}
	ErrMethodNotFound = &RpcError{Code: -32601, Message: "Method not found"}
	ErrInvalidParams  = &RpcError{Code: -32602, Message: "Invalid params"}
	ErrInternal       = &RpcError{Code: -32603, Message: "Internal error"}

	// Exposure specific errors (-32000 to -32099)
	ErrServerNotFound = &RpcError{Code: -32000, Message: "Server not found"}
	ErrUnauthorized   = &RpcError{Code: -32001, Message: "Unauthorized"}
)

// WithMessagef creates a *copy* of an RpcError with a formatted message.
// It does not modify the original error variable.
func (e *RpcError) WithMessagef(format string, args ...any) *RpcError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

/*
Is lets errors.Is match a copy made by WithMessagef against the
sentinel it was made from, comparing on the code only.
*/
func (e *RpcError) Is(target error) bool {
	other, ok := target.(*RpcError)

	if !ok || other == nil || e == nil {
		return false
	}

	return e.Code == other.Code
}
