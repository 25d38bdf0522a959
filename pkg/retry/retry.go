package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// Policy retries an operation with linear backoff. Only transient errors are
// retried; a permanent error is returned immediately.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default matches the send/read retry budget of the resident loops.
var Default = Policy{MaxAttempts: 3, Delay: 2 * time.Second}

// Do runs fn up to MaxAttempts times, sleeping Delay*attempt between tries.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || !IsTransient(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay * time.Duration(attempt)):
		}
	}
	return lastErr
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"econnreset",
	"econnrefused",
	"socket disconnected",
	"socket hang up",
	"tls handshake",
	"rate limit",
	"temporarily unavailable",
}

// statusCoder is implemented by API errors that carry an HTTP status.
type statusCoder interface{ HTTPStatus() int }

// IsTransient reports whether err looks like a transient transport failure:
// HTTP 429/5xx, network timeouts, connection resets and rate limiting.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() == 429 || sc.HTTPStatus() >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
