package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls the retry ladder.
type Policy struct {
	// MaxAttempts includes the first try. Default 3.
	MaxAttempts int
	// BaseDelay seeds the exponential ladder for rate-limit outcomes.
	// Default 2s.
	BaseDelay time.Duration
	// MaxDelay caps any single sleep. Default 60s.
	MaxDelay time.Duration
	// TransientDelay is the fixed short sleep for timeout/connection
	// failures. Default 3s.
	TransientDelay time.Duration
	// OnRetry is invoked before each retry sleep.
	OnRetry func(attempt int, outcome Outcome, err error)
}

// DefaultPolicy is tuned for a shared-rate-limit LLM provider.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		MaxDelay:       60 * time.Second,
		TransientDelay: 3 * time.Second,
	}
}

// Counters tallies attempts by result; shared counters must be guarded by
// the caller or be per-worker.
type Counters struct {
	Successes int
	Retries   int
	Permanent int
}

// Retry runs fn until success, a permanent outcome, exhausted attempts, or
// context cancellation. Rate-limit outcomes sleep exponentially with
// uniform jitter capped at MaxDelay; transient outcomes sleep the fixed
// TransientDelay.
func Retry[T any](ctx context.Context, p Policy, counters *Counters, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			if counters != nil {
				counters.Successes++
			}
			return val, nil
		}
		lastErr = err

		outcome := Classify(err)
		if outcome == Permanent || ctx.Err() != nil {
			if counters != nil {
				counters.Permanent++
			}
			return zero, lastErr
		}
		if attempt >= p.MaxAttempts-1 {
			break
		}
		if counters != nil {
			counters.Retries++
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, outcome, err)
		}

		var delay time.Duration
		if outcome == RateLimited {
			delay = backoffDelay(attempt, p.BaseDelay, p.MaxDelay)
		} else {
			delay = p.TransientDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	if counters != nil {
		counters.Permanent++
	}
	return zero, lastErr
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 60 * time.Second
	}
	if p.TransientDelay <= 0 {
		p.TransientDelay = 3 * time.Second
	}
	return p
}

// backoffDelay computes base*2^attempt with uniform jitter in [0.5, 1.0] of
// the computed value, capped at maxDelay.
func backoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	jittered := d/2 + rand.Float64()*d/2
	return time.Duration(jittered)
}

// RetryLogger returns an OnRetry callback tagged with component and unit.
func RetryLogger(component, unit string) func(int, Outcome, error) {
	return func(attempt int, outcome Outcome, err error) {
		zap.L().Warn("retrying after remote failure",
			zap.String("component", component),
			zap.String("unit", unit),
			zap.Int("attempt", attempt),
			zap.String("outcome", outcome.String()),
			zap.Error(err),
		)
	}
}
