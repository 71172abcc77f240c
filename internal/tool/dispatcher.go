package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/observe"
)

// Dispatcher validates and executes tool requests against a [Registry],
// producing exactly one [Result] envelope per request. It is stateless and
// safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	metrics  *observe.Metrics
}

// NewDispatcher creates a Dispatcher over the given registry. A nil metrics
// falls back to [observe.DefaultMetrics].
func NewDispatcher(registry *Registry, metrics *observe.Metrics) *Dispatcher {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Dispatcher{registry: registry, metrics: metrics}
}

// Dispatch executes one request. Unknown tools and invalid arguments
// short-circuit before the handler runs; handler panics are recovered into an
// internal-error envelope with the detail kept out of the client-facing
// message. The returned envelope always names the requested tool and echoes
// the request ID.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	start := time.Now()
	res := d.dispatch(ctx, req)
	d.metrics.ToolDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("tool", req.Tool)))
	d.metrics.RecordToolCall(ctx, req.Tool, res.Status)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Result {
	e, ok := d.registry.lookupEntry(req.Tool)
	if !ok {
		return errorResult(req, CodeUnknownTool,
			fmt.Sprintf("unknown tool %q", req.Tool))
	}

	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	if err := e.resolved.Validate(args); err != nil {
		return errorResult(req, CodeInvalidArguments, err.Error())
	}

	data, err := d.invoke(ctx, e.desc, args)
	if err != nil {
		code := errorCode(err)
		if code == CodeInternalError {
			slog.Error("tool failed with internal error",
				"tool", req.Tool,
				"request_id", req.ID,
				"error", err)
		}
		return errorResult(req, code, clientMessage(err))
	}
	return Result{
		Status:    StatusSuccess,
		Tool:      req.Tool,
		RequestID: req.ID,
		Data:      data,
	}
}

// invoke runs the handler with panic recovery.
func (d *Dispatcher) invoke(ctx context.Context, desc Descriptor, args map[string]any) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool handler panicked",
				"tool", desc.Name,
				"panic", r)
			err = fmt.Errorf("tool: %s: %w: handler panic", desc.Name, errInternal)
		}
	}()
	return desc.Handler(ctx, args)
}

// errInternal marks failures whose detail must not reach the client.
var errInternal = errors.New("internal error")

// errorCode maps a handler error to an envelope error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArguments):
		return CodeInvalidArguments
	case errors.Is(err, ErrUnknownTool):
		return CodeUnknownTool
	case errors.Is(err, errInternal):
		return CodeInternalError
	case maps.IsTransient(err):
		return CodeUpstreamTransient
	case maps.IsTerminal(err):
		return CodeUpstreamTerminal
	default:
		return CodeInternalError
	}
}

// clientMessage returns the message safe to put in a client-facing envelope.
// Internal failures get a generic message; the detail stays in the logs.
func clientMessage(err error) string {
	if errorCode(err) == CodeInternalError {
		return "internal error"
	}
	return err.Error()
}

func errorResult(req Request, code, message string) Result {
	return Result{
		Status:    StatusError,
		Tool:      req.Tool,
		RequestID: req.ID,
		Error:     message,
		ErrorCode: code,
	}
}
