package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransientTest = errors.New("transient failure")
var errTerminalTest = errors.New("terminal failure")

// recordingSleep captures requested delays without actually waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	p := Policy{
		MaxAttempts: 3,
		Retryable:   func(err error) bool { return errors.Is(err, errTransientTest) },
		Sleep:       recordingSleep(&delays),
	}

	calls := 0
	got, err := Do(context.Background(), p, "op", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransientTest
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	p := Policy{
		MaxAttempts: 3,
		Retryable:   func(error) bool { return true },
		Sleep:       recordingSleep(&delays),
	}

	calls := 0
	_, err := Do(context.Background(), p, "op", func(context.Context) (int, error) {
		calls++
		return 0, errTransientTest
	})
	if !errors.Is(err, errTransientTest) {
		t.Fatalf("err = %v, want errTransientTest", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly MaxAttempts", calls)
	}
	if len(delays) != 2 {
		t.Errorf("slept %d times, want 2 (no sleep after last attempt)", len(delays))
	}
}

func TestDo_TerminalErrorStopsImmediately(t *testing.T) {
	t.Parallel()
	p := Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, errTerminalTest) },
		Sleep: func(context.Context, time.Duration) error {
			t.Fatal("Sleep called for terminal error")
			return nil
		},
	}

	calls := 0
	_, err := Do(context.Background(), p, "op", func(context.Context) (int, error) {
		calls++
		return 0, errTerminalTest
	})
	if !errors.Is(err, errTerminalTest) {
		t.Fatalf("err = %v, want errTerminalTest", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_BackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	p := Policy{
		MaxAttempts: 6,
		MinWait:     time.Second,
		MaxWait:     4 * time.Second,
		Retryable:   func(error) bool { return true },
		Sleep:       recordingSleep(&delays),
	}

	_, _ = Do(context.Background(), p, "op", func(context.Context) (int, error) {
		return 0, errTransientTest
	})

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}
	if len(delays) != len(want) {
		t.Fatalf("slept %d times, want %d", len(delays), len(want))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestDo_DefaultSchedule(t *testing.T) {
	t.Parallel()
	p := Policy{}.withDefaults()
	if p.MaxAttempts != 3 || p.MinWait != time.Second || p.MaxWait != 10*time.Second {
		t.Fatalf("defaults = %d/%v/%v, want 3/1s/10s", p.MaxAttempts, p.MinWait, p.MaxWait)
	}
	if p.delay(1) != time.Second || p.delay(2) != 2*time.Second || p.delay(3) != 4*time.Second {
		t.Errorf("delay sequence = %v,%v,%v", p.delay(1), p.delay(2), p.delay(3))
	}
	if p.delay(10) != 10*time.Second {
		t.Errorf("delay(10) = %v, want cap at 10s", p.delay(10))
	}
}

func TestDo_NilRetryableRetriesEverything(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	p := Policy{MaxAttempts: 2, Sleep: recordingSleep(&delays)}

	calls := 0
	_, err := Do(context.Background(), p, "op", func(context.Context) (int, error) {
		calls++
		return 0, errTerminalTest
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 3,
		MinWait:     time.Millisecond,
		Retryable:   func(error) bool { return true },
	}

	calls := 0
	_, err := Do(ctx, p, "op", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransientTest
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_JitterStaysWithinBounds(t *testing.T) {
	t.Parallel()
	p := Policy{MinWait: time.Second, MaxWait: 10 * time.Second, Jitter: 0.5}.withDefaults()
	for i := 0; i < 100; i++ {
		d := p.delay(2) // base 2s
		if d < time.Second || d > 2*time.Second {
			t.Fatalf("jittered delay %v outside [1s, 2s]", d)
		}
	}
}

func TestDo_StatelessAcrossCalls(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	p := Policy{
		MaxAttempts: 2,
		MinWait:     time.Second,
		Retryable:   func(error) bool { return true },
		Sleep:       recordingSleep(&delays),
	}

	for i := 0; i < 2; i++ {
		_, _ = Do(context.Background(), p, "op", func(context.Context) (int, error) {
			return 0, errTransientTest
		})
	}
	// Both calls start the schedule from MinWait.
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != time.Second {
		t.Fatalf("delays = %v, want [1s 1s]", delays)
	}
}
