package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"
)

var (
	ErrTimeout     = errors.New("request timed out")
	ErrUnavailable = errors.New("service unavailable")
)

// RequestError reports a call that never produced an HTTP response.
// Kind is ErrTimeout or ErrUnavailable.
type RequestError struct {
	Endpoint string
	Kind     error
	Cause    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Endpoint, e.Kind, e.Cause)
}

func (e *RequestError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

type RetryPolicy struct {
	// MaxAttempts counts every attempt, the first one included.
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether an error is worth another attempt. Defaults to IsRetryable.
	Retryable func(error) bool
	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Backoff returns the delay after the given zero-based attempt: base * 2^attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
}

// IsRetryable reports whether err is a timeout, a network failure or a 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return false
}

// Retry runs fn until it succeeds, returns a non-retryable error, the attempts run out
// or ctx is done. The last error is returned unchanged.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == maxAttempts-1 {
			return lastErr
		}

		delay := policy.Backoff(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func classifyTransportError(endpoint string, err error) error {
	kind := ErrUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrTimeout
	}
	return &RequestError{Endpoint: endpoint, Kind: kind, Cause: err}
}
