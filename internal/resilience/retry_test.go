package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		TransientDelay: time.Millisecond,
	}
}

func TestRetry_SuccessFirstTry(t *testing.T) {
	var calls int
	var c Counters
	v, err := Retry(context.Background(), fastPolicy(), &c, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Successes)
	assert.Equal(t, 0, c.Retries)
}

func TestRetry_RateLimitedThenSuccess(t *testing.T) {
	var calls int
	var c Counters
	v, err := Retry(context.Background(), fastPolicy(), &c, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewStatusError(errors.New("too many requests"), http.StatusTooManyRequests)
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, c.Retries)
}

func TestRetry_PermanentNoRetry(t *testing.T) {
	var calls int
	var c Counters
	_, err := Retry(context.Background(), fastPolicy(), &c, func(context.Context) (int, error) {
		calls++
		return 0, NewStatusError(errors.New("not found"), http.StatusNotFound)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Permanent)
}

func TestRetry_ExhaustionCountsPermanent(t *testing.T) {
	var calls int
	var c Counters
	_, err := Retry(context.Background(), fastPolicy(), &c, func(context.Context) (int, error) {
		calls++
		return 0, NewStatusError(errors.New("429"), http.StatusTooManyRequests)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, c.Retries)
	assert.Equal(t, 1, c.Permanent)
}

func TestRetry_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := Retry(ctx, fastPolicy(), nil, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewStatusError(errors.New("503"), http.StatusServiceUnavailable)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OK, Classify(nil))
	assert.Equal(t, RateLimited, Classify(NewStatusError(errors.New("x"), 429)))
	assert.Equal(t, RateLimited, Classify(NewStatusError(errors.New("x"), 529)))
	assert.Equal(t, Transient, Classify(NewStatusError(errors.New("x"), 503)))
	assert.Equal(t, Permanent, Classify(NewStatusError(errors.New("x"), 404)))
	assert.Equal(t, Transient, Classify(errors.New("read tcp: i/o timeout")))
	assert.Equal(t, RateLimited, Classify(errors.New("provider rate limit exceeded")))
	assert.Equal(t, Permanent, Classify(errors.New("invalid api key")))
	assert.Equal(t, Permanent, Classify(context.Canceled))
}

func TestBackoffDelay_CappedAndJittered(t *testing.T) {
	for attempt := 0; attempt < 12; attempt++ {
		d := backoffDelay(attempt, time.Second, 10*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
		assert.Greater(t, d, time.Duration(0))
	}
}
