package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy bounds how a Client retries failed requests. Status-based
// retries (429 and 5xx) and transport-error retries are budgeted separately.
type RetryPolicy struct {
	// MaxAttempts is the total number of request attempts, first try included.
	MaxAttempts int
	// TransportRetries is how many connection-level failures are retried
	// before giving up, independent of MaxAttempts.
	TransportRetries int
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
	// MaxDelay caps any single wait, including server-supplied hints.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the limits the streaming APIs tolerate well.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      5,
		TransportRetries: 2,
		BaseDelay:        time.Second,
		MaxDelay:         60 * time.Second,
	}
}

// retryDelay picks the wait before the next attempt. Server hints win over
// computed backoff: Retry-After first, then X-RateLimit-Reset.
func (p RetryPolicy) retryDelay(attempt int, header http.Header) time.Duration {
	if d, ok := parseRetryAfter(header.Get("Retry-After")); ok {
		return p.cap(d)
	}
	if d, ok := parseRateLimitReset(header.Get("X-RateLimit-Reset")); ok {
		return p.cap(d)
	}
	return p.backoff(attempt)
}

// backoff doubles the base delay per attempt with 0.75x-1.25x jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := 0.75 + 0.5*rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func (p RetryPolicy) cap(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

// parseRateLimitReset handles both unix-epoch and delta-seconds values.
func parseRateLimitReset(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	// Values in the epoch range are absolute reset timestamps
	if seconds > 1_000_000_000 {
		return time.Until(time.Unix(seconds, 0)), true
	}
	return time.Duration(seconds) * time.Second, true
}

// StatusError is a non-success API response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, status int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.StatusCode == status
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
