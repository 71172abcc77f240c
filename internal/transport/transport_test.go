package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/routewise/geomcp/internal/observe"
	"github.com/routewise/geomcp/internal/tool"
)

type stubDispatcher struct {
	mu    sync.Mutex
	calls []tool.Request
	fn    func(tool.Request) tool.Result
}

func (d *stubDispatcher) Dispatch(_ context.Context, req tool.Request) tool.Result {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	d.mu.Unlock()
	if d.fn != nil {
		return d.fn(req)
	}
	return tool.Result{
		Status:    tool.StatusSuccess,
		Tool:      req.Tool,
		RequestID: req.ID,
		Data:      map[string]any{"echo": true},
	}
}

func newTestBridge(t *testing.T, cfg ManagerConfig) (*Bridge, *stubDispatcher, *httptest.Server) {
	t.Helper()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	disp := &stubDispatcher{}
	bridge, err := NewBridge(NewManager(cfg), disp, metrics)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	srv := httptest.NewServer(bridge)
	t.Cleanup(srv.Close)
	return bridge, disp, srv
}

// openStream connects to /sse and returns a reader over the event stream
// plus the session id parsed from the handshake.
func openStream(t *testing.T, srv *httptest.Server) (*bufio.Reader, string, func()) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/sse")
	if err != nil {
		t.Fatalf("GET /sse: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /sse status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	br := bufio.NewReader(resp.Body)
	event, data := readEvent(t, br)
	if event != "endpoint" {
		t.Fatalf("first event = %q, want endpoint", event)
	}
	if !strings.HasPrefix(data, "/messages?session_id=") {
		t.Fatalf("endpoint data = %q, want /messages?session_id=...", data)
	}
	id := strings.TrimPrefix(data, "/messages?session_id=")
	return br, id, func() { resp.Body.Close() }
}

// readEvent reads one SSE event, skipping comment keepalives.
func readEvent(t *testing.T, br *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func submit(t *testing.T, srv *httptest.Server, sessionID string, req tool.Request) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(
		srv.URL+"/messages?session_id="+sessionID,
		"application/json",
		strings.NewReader(string(body)),
	)
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	return resp
}

func TestBridge_HandshakeCarriesSessionID(t *testing.T) {
	t.Parallel()
	bridge, _, srv := newTestBridge(t, ManagerConfig{})

	br, id, closeStream := openStream(t, srv)
	defer closeStream()
	_ = br

	if id == "" {
		t.Fatal("handshake carried empty session id")
	}
	if _, err := bridge.sessions.Get(id); err != nil {
		t.Fatalf("session %q not tracked: %v", id, err)
	}
}

func TestBridge_SubmitStreamsResult(t *testing.T) {
	t.Parallel()
	_, disp, srv := newTestBridge(t, ManagerConfig{})

	br, id, closeStream := openStream(t, srv)
	defer closeStream()

	resp := submit(t, srv, id, tool.Request{Tool: "geocode_address", ID: "req-1", Args: map[string]any{"address": "x"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	var ack map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatalf("decoding ack: %v", err)
	}
	if ack["status"] != "accepted" || ack["request_id"] != "req-1" {
		t.Fatalf("ack = %v", ack)
	}

	event, data := readEvent(t, br)
	if event != "message" {
		t.Fatalf("event = %q, want message", event)
	}
	var res tool.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Status != tool.StatusSuccess || res.Tool != "geocode_address" || res.RequestID != "req-1" {
		t.Fatalf("result = %+v", res)
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.calls) != 1 {
		t.Fatalf("dispatcher calls = %d, want 1", len(disp.calls))
	}
}

func TestBridge_PerSessionOrdering(t *testing.T) {
	t.Parallel()
	_, _, srv := newTestBridge(t, ManagerConfig{QueueSize: 16})

	br, id, closeStream := openStream(t, srv)
	defer closeStream()

	const n = 5
	for i := 0; i < n; i++ {
		resp := submit(t, srv, id, tool.Request{Tool: "get_directions", ID: fmt.Sprintf("req-%d", i)})
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("submit %d status = %d", i, resp.StatusCode)
		}
	}

	for i := 0; i < n; i++ {
		_, data := readEvent(t, br)
		var res tool.Result
		if err := json.Unmarshal([]byte(data), &res); err != nil {
			t.Fatalf("decoding result %d: %v", i, err)
		}
		if want := fmt.Sprintf("req-%d", i); res.RequestID != want {
			t.Fatalf("result %d request_id = %q, want %q", i, res.RequestID, want)
		}
	}
}

func TestBridge_UnknownSessionIsNotFound(t *testing.T) {
	t.Parallel()
	_, disp, srv := newTestBridge(t, ManagerConfig{})

	resp := submit(t, srv, "no-such-session", tool.Request{Tool: "geocode_address"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var res tool.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if res.Status != tool.StatusError || res.Error == "" || res.ErrorCode != tool.CodeSessionNotFound {
		t.Fatalf("body = %+v, want session_not_found error", res)
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.calls) != 0 {
		t.Fatal("dispatcher ran for unknown session")
	}
}

func TestBridge_TrailingSlashNeverRedirects(t *testing.T) {
	t.Parallel()
	_, _, srv := newTestBridge(t, ManagerConfig{})

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	for _, path := range []string{"/sse/", "/messages/"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			t.Errorf("GET %s status = %d, want no redirect", path, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestBridge_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	_, _, srv := newTestBridge(t, ManagerConfig{})

	resp, err := http.Post(srv.URL+"/sse", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /sse: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /sse status = %d, want 405", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/messages?session_id=x")
	if err != nil {
		t.Fatalf("GET /messages: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /messages status = %d, want 405", resp.StatusCode)
	}
}

func TestBridge_MalformedBodyIsBadRequest(t *testing.T) {
	t.Parallel()
	_, _, srv := newTestBridge(t, ManagerConfig{})

	_, id, closeStream := openStream(t, srv)
	defer closeStream()

	resp, err := http.Post(srv.URL+"/messages?session_id="+id, "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var res tool.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if res.Error == "" || res.ErrorCode != tool.CodeInvalidArguments {
		t.Fatalf("body = %+v, want invalid_arguments", res)
	}
}

func TestBridge_MissingToolNameIsBadRequest(t *testing.T) {
	t.Parallel()
	_, _, srv := newTestBridge(t, ManagerConfig{})

	_, id, closeStream := openStream(t, srv)
	defer closeStream()

	resp := submit(t, srv, id, tool.Request{ID: "req-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSession_SubmitAfterCloseFails(t *testing.T) {
	t.Parallel()
	m := NewManager(ManagerConfig{})
	sess := m.Create()
	sess.Close()

	if err := sess.Submit(tool.Request{Tool: "x"}); err != ErrSessionClosed {
		t.Fatalf("Submit after close = %v, want ErrSessionClosed", err)
	}
	if sess.Deliver(tool.Result{}) {
		t.Fatal("Deliver after close accepted the result")
	}
}

func TestSession_QueueFull(t *testing.T) {
	t.Parallel()
	m := NewManager(ManagerConfig{QueueSize: 1})
	sess := m.Create()
	defer sess.Close()

	if err := sess.Submit(tool.Request{Tool: "a"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := sess.Submit(tool.Request{Tool: "b"}); err != ErrQueueFull {
		t.Fatalf("second submit = %v, want ErrQueueFull", err)
	}
}

func TestManager_SweepIdle(t *testing.T) {
	t.Parallel()
	m := NewManager(ManagerConfig{IdleTimeout: 20 * time.Millisecond})
	idle := m.Create()
	fresh := m.Create()

	time.Sleep(40 * time.Millisecond)
	fresh.Touch()

	expired := m.SweepIdle()
	if len(expired) != 1 || expired[0] != idle.ID() {
		t.Fatalf("expired = %v, want [%s]", expired, idle.ID())
	}
	if _, err := m.Get(idle.ID()); err != ErrSessionNotFound {
		t.Fatalf("Get(idle) = %v, want ErrSessionNotFound", err)
	}
	if _, err := m.Get(fresh.ID()); err != nil {
		t.Fatalf("fresh session swept: %v", err)
	}
	if idle.State() != StateClosed {
		t.Fatalf("idle state = %v, want closed", idle.State())
	}
}

func TestManager_RemoveClosesSession(t *testing.T) {
	t.Parallel()
	m := NewManager(ManagerConfig{})
	sess := m.Create()

	m.Remove(sess.ID())
	if _, err := m.Get(sess.ID()); err != ErrSessionNotFound {
		t.Fatalf("Get = %v, want ErrSessionNotFound", err)
	}
	select {
	case <-sess.Done():
	default:
		t.Fatal("Remove did not close the session")
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	want := map[State]string{
		StateConnecting: "connecting",
		StateStreaming:  "streaming",
		StateDraining:   "draining",
		StateClosed:     "closed",
	}
	for st, name := range want {
		if got := st.String(); got != name {
			t.Errorf("State(%d).String() = %q, want %q", st, got, name)
		}
	}
}
