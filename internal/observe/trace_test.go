package observe

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withSpan runs fn inside a recorded span and returns the captured spans.
func withSpan(t *testing.T, name string, fn func(ctx context.Context)) tracetest.SpanStubs {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	ctx, span := StartSpan(context.Background(), name)
	fn(ctx)
	span.End()
	return exp.GetSpans()
}

var hexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestCorrelationID_MatchesRecordedTraceID(t *testing.T) {
	var cid string
	spans := withSpan(t, "tool geocode_address", func(ctx context.Context) {
		cid = CorrelationID(ctx)
	})
	if !hexID.MatchString(cid) {
		t.Fatalf("CorrelationID = %q, want 32 hex chars", cid)
	}
	if len(spans) != 1 || spans[0].Name != "tool geocode_address" {
		t.Fatalf("spans = %+v", spans)
	}
	if got := spans[0].SpanContext.TraceID().String(); got != cid {
		t.Errorf("trace id %s != correlation id %s", got, cid)
	}
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	t.Parallel()
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationID_DistinctPerRequest(t *testing.T) {
	seen := make(map[string]struct{}, 50)
	for range 50 {
		withSpan(t, "HTTP GET /sse", func(ctx context.Context) {
			cid := CorrelationID(ctx)
			if _, dup := seen[cid]; dup {
				t.Fatalf("duplicate correlation ID %s", cid)
			}
			seen[cid] = struct{}{}
		})
	}
}

func TestLogger_CarriesTraceAndSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	withSpan(t, "tool search_places", func(ctx context.Context) {
		Logger(ctx).Info("dispatching")
	})

	out := buf.String()
	for _, want := range []string{"trace_id=", "span_id="} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Logger(context.Background()).Info("starting up")

	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Errorf("spanless logger leaked trace_id: %s", buf.String())
	}
}

func TestTracer_NonNil(t *testing.T) {
	t.Parallel()
	if Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
}
