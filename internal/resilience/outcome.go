// Package resilience classifies remote failures and drives the retry
// ladders used against the LLM provider, the geocoder, and the press
// portals. Instead of retrying on exception type, callers classify an error
// into an Outcome and pattern-match on it.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
)

// Outcome is the retry-relevant classification of a failed remote call.
type Outcome int

const (
	// OK means no error.
	OK Outcome = iota
	// RateLimited means the provider pushed back (HTTP 429 or rate-limit
	// flavored 403); back off with jitter and retry.
	RateLimited
	// Transient means a timeout or connection-level failure; retry after a
	// short delay.
	Transient
	// Permanent means retrying cannot help (4xx, malformed response, auth).
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case RateLimited:
		return "rate_limited"
	case Transient:
		return "transient"
	default:
		return "permanent"
	}
}

// StatusError carries an HTTP status for classification.
type StatusError struct {
	Err        error
	StatusCode int
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// NewStatusError wraps err with an HTTP status code.
func NewStatusError(err error, statusCode int) *StatusError {
	return &StatusError{Err: err, StatusCode: statusCode}
}

// Classify maps an error to its Outcome. Anthropic SDK errors, HTTP status
// errors, and net-level failures are recognized; context cancellation is
// permanent because the caller is shutting down.
func Classify(err error) Outcome {
	if err == nil {
		return OK
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Permanent
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode)
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return Transient
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, p) {
			return Transient
		}
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded") {
		return RateLimited
	}

	return Permanent
}

func classifyStatus(code int) Outcome {
	switch {
	case code == http.StatusTooManyRequests:
		return RateLimited
	case code == http.StatusRequestTimeout:
		return Transient
	case code == 529: // anthropic overloaded
		return RateLimited
	case code >= 500:
		return Transient
	default:
		return Permanent
	}
}
