package resilience

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy describes a bounded exponential-backoff retry schedule.
//
// A Policy holds no mutable state: the same value can wrap any number of
// concurrent calls. Each call starts from attempt 1 with a fresh delay
// sequence.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3.
	MaxAttempts int

	// MinWait is the delay before the first retry. Each subsequent delay
	// doubles. Default: 1s.
	MinWait time.Duration

	// MaxWait caps the delay between attempts. Default: 10s.
	MaxWait time.Duration

	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries every error.
	Retryable func(error) bool

	// Jitter is the fraction of each delay that is randomised, in [0,1].
	// Zero (the default) gives fully deterministic delays.
	Jitter float64

	// Sleep waits for the backoff delay. A nil Sleep uses a context-aware
	// timer; tests substitute a recorder.
	Sleep func(ctx context.Context, d time.Duration) error
}

// withDefaults returns a copy of p with zero fields replaced.
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.MinWait <= 0 {
		p.MinWait = time.Second
	}
	if p.MaxWait <= 0 {
		p.MaxWait = 10 * time.Second
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// delay returns the backoff before retry number attempt (1-based: the delay
// after the attempt-th failure). The sequence is MinWait, 2·MinWait,
// 4·MinWait, … capped at MaxWait, with optional jitter applied after the cap.
func (p Policy) delay(attempt int) time.Duration {
	d := p.MinWait
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxWait {
			d = p.MaxWait
			break
		}
	}
	if d > p.MaxWait {
		d = p.MaxWait
	}
	if p.Jitter > 0 {
		// Spread uniformly over [d·(1−jitter), d].
		span := float64(d) * p.Jitter
		d = time.Duration(float64(d) - span*rand.Float64())
	}
	return d
}

// Do runs fn under the policy, returning the first successful result. It
// stops early when fn's error is not retryable or when ctx is done; after
// MaxAttempts exhausted attempts the last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var (
		result  T
		lastErr error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		var err error
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return result, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		d := p.delay(attempt)
		slog.Debug("retrying after failure",
			"op", op,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", d,
			"error", err)
		if err := p.Sleep(ctx, d); err != nil {
			return result, err
		}
	}
	return result, lastErr
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
