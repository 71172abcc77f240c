package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/routewise/geomcp/internal/observe"
	"github.com/routewise/geomcp/internal/tool"
)

const (
	ssePath      = "/sse"
	messagesPath = "/messages"

	// keepaliveInterval is how often an SSE comment is written to hold the
	// connection open through proxies.
	keepaliveInterval = 15 * time.Second

	// maxSubmitBody bounds the size of a single tool request body.
	maxSubmitBody = 1 << 20
)

// Dispatcher executes one tool request and returns its result envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, req tool.Request) tool.Result
}

// Bridge serves the SSE transport: GET /sse opens a session stream and
// POST /messages submits tool requests to it. Paths are matched literally,
// so /sse/ and /messages/ are not found rather than redirected.
type Bridge struct {
	sessions   *Manager
	dispatcher Dispatcher
	metrics    *observe.Metrics
}

// NewBridge creates a Bridge over the given session manager and dispatcher.
// A nil metrics falls back to [observe.DefaultMetrics].
func NewBridge(sessions *Manager, dispatcher Dispatcher, metrics *observe.Metrics) (*Bridge, error) {
	if sessions == nil {
		return nil, fmt.Errorf("transport: nil session manager")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("transport: nil dispatcher")
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Bridge{sessions: sessions, dispatcher: dispatcher, metrics: metrics}, nil
}

// Wrap returns a handler that serves the bridge's two endpoints and passes
// every other request to next. The bridge paths are compared byte for byte
// against the request path, bypassing [http.ServeMux] trailing-slash
// redirects.
func (b *Bridge) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ssePath:
			b.handleSSE(w, r)
		case messagesPath:
			b.handleSubmit(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// ServeHTTP serves the bridge endpoints only; everything else is 404.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.Wrap(http.NotFoundHandler()).ServeHTTP(w, r)
}

// StartSweeper runs the idle-session sweeper until ctx is cancelled.
func (b *Bridge) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(b.sessions.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range b.sessions.SweepIdle() {
				slog.Info("session expired", "session_id", id)
			}
		}
	}
}

func (b *Bridge) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := b.sessions.Create()
	b.metrics.ActiveSessions.Add(r.Context(), 1)
	slog.Info("session started", "session_id", sess.ID(), "remote", r.RemoteAddr)

	defer func() {
		sess.Drain()
		b.sessions.Remove(sess.ID())
		b.metrics.ActiveSessions.Add(context.Background(), -1)
		slog.Info("session stopped", "session_id", sess.ID(), "age", sess.Age())
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Handshake: tell the client where to submit requests for this session.
	fmt.Fprintf(w, "event: endpoint\ndata: %s?session_id=%s\n\n", messagesPath, sess.ID())
	flusher.Flush()
	sess.setState(StateStreaming)

	// One dispatch goroutine per session keeps results in submission order.
	go b.dispatchLoop(sess)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			return
		case res := <-sess.outbound:
			payload, err := json.Marshal(res)
			if err != nil {
				slog.Error("encoding result", "session_id", sess.ID(), "tool", res.Tool, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			flusher.Flush()
			sess.Touch()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// dispatchLoop drains a session's inbound queue sequentially. It exits when
// the session closes; an in-flight request finishes first and its result is
// dropped.
func (b *Bridge) dispatchLoop(sess *Session) {
	for {
		select {
		case <-sess.Done():
			return
		case req := <-sess.inbound:
			res := b.dispatcher.Dispatch(context.Background(), req)
			if !sess.Deliver(res) {
				b.metrics.DroppedResults.Add(context.Background(), 1)
				slog.Warn("result dropped", "session_id", sess.ID(), "tool", req.Tool, "request_id", req.ID)
			}
		}
	}
}

func (b *Bridge) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	sess, err := b.sessions.Get(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, tool.CodeSessionNotFound, "unknown session")
		return
	}

	var req tool.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, tool.CodeInvalidArguments, "malformed request body")
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, tool.CodeInvalidArguments, "missing tool name")
		return
	}

	switch err := sess.Submit(req); {
	case errors.Is(err, ErrSessionClosed):
		writeError(w, http.StatusNotFound, tool.CodeSessionNotFound, "session closed")
		return
	case errors.Is(err, ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, tool.CodeInternalError, "session queue full")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, tool.CodeInternalError, "internal error")
		return
	}

	b.metrics.SubmittedRequests.Add(r.Context(), 1,
		metric.WithAttributes(observe.Attr("tool", req.Tool)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "accepted",
		"request_id": req.ID,
	})
}

// writeError writes a JSON error envelope with the transport-level status.
func writeError(w http.ResponseWriter, httpStatus int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(tool.Result{
		Status:    tool.StatusError,
		Error:     message,
		ErrorCode: code,
	})
}
