// Package tool implements the tool registry and dispatcher: named tool
// descriptors with JSON-schema argument validation, and a dispatch path that
// turns every invocation into exactly one uniform result envelope.
//
// Registration happens once at startup; after that the registry is read-only
// and safe for concurrent lookups from any number of dispatching goroutines.
package tool

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler executes one tool invocation. Args have already passed schema
// validation. The returned value is serialised as the envelope's data field.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Descriptor declares a tool: its name, human-readable description, argument
// schema, and handler.
type Descriptor struct {
	Name        string
	Description string

	// InputSchema describes the args object. Compiled once at registration.
	InputSchema *jsonschema.Schema

	Handler Handler
}

// Request is one tool invocation as submitted by a client. Requests are
// immutable after decoding.
type Request struct {
	// Tool is the registered tool name.
	Tool string `json:"tool"`

	// Args is the raw argument object, validated against the tool's schema.
	Args map[string]any `json:"args"`

	// ID is an opaque client-supplied correlation token, echoed on the result.
	ID string `json:"request_id,omitempty"`
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes carried in error envelopes.
const (
	CodeInvalidArguments  = "invalid_arguments"
	CodeUnknownTool       = "unknown_tool"
	CodeUpstreamTransient = "upstream_transient"
	CodeUpstreamTerminal  = "upstream_terminal"
	CodeSessionNotFound   = "session_not_found"
	CodeInternalError     = "internal_error"
)

// Result is the uniform envelope produced for every dispatched request:
// exactly one per request, success or error, never both data and error.
// Error carries the plain message string; the machine-readable code rides
// alongside in ErrorCode.
type Result struct {
	Status    string `json:"status"`
	Tool      string `json:"tool"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// ErrUnknownTool is returned when a request names a tool that was never
// registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidArguments is returned when request args fail schema validation.
var ErrInvalidArguments = errors.New("invalid arguments")
