package catalog

import (
	"errors"
	"fmt"
)

var errNotConnected = errors.New("not connected")

type (
	// ConnectionError represents an error that occurred while connecting to an MCP server
	ConnectionError struct {
		Server string
		Err    error
	}

	// NotFoundError represents a server name nobody registered
	NotFoundError struct {
		Server string
	}
)

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to mcp server %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mcp server not found: %s", e.Server)
}
