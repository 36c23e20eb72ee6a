// Package tool implements the broker that mediates every call an LLM-tools
// node makes to an externally-hosted tool server, over either a stdio
// child-process transport or an HTTP transport.
package tool

import (
	"context"
	"errors"
)

// ErrUnknownTool is returned by Invoke when no registered server's catalogue
// contains the requested tool name.
var ErrUnknownTool = errors.New("tool: unknown tool")

// ErrTransportLost is returned when a server's transport disconnects mid-call.
var ErrTransportLost = errors.New("tool: transport lost")

// ErrCallTimeout is returned when a call exceeds its per-call deadline
// without a matching reply.
var ErrCallTimeout = errors.New("tool: call timed out")

// Spec describes one callable tool as discovered from a server's catalogue.
type Spec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// Result is the outcome of one tool invocation. IsError distinguishes a
// structured application-level failure reported by the tool server (which
// the LLM should see and can react to) from a Go error returned by Invoke,
// which always indicates an infrastructure failure (unknown tool, transport
// loss, timeout).
type Result struct {
	Value        map[string]interface{}
	IsError      bool
	ErrorMessage string
}

// transport is the narrow interface the broker drives. stdioTransport and
// httpTransport both implement it.
type transport interface {
	Handshake(ctx context.Context) error
	ListTools(ctx context.Context) ([]Spec, error)
	Invoke(ctx context.Context, toolName string, args map[string]interface{}, correlationID string) (Result, error)
	Shutdown(ctx context.Context) error
}

// ServerDescriptor configures one tool server registration. Kind selects
// which transport-specific fields apply.
type ServerDescriptor struct {
	Name string
	Kind TransportKind

	// stdio transport fields
	Command string
	Args    []string
	Dir     string
	Env     map[string]string

	// http transport fields
	URL     string
	Headers map[string]string
}

// TransportKind selects stdio or HTTP transport for a server descriptor.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)
