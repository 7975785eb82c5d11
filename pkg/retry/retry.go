// Package retry runs an operation with exponential backoff.
//
//	err := retry.Do(ctx, retry.Policy{
//	    MaxAttempts:    3,
//	    InitialBackoff: 500 * time.Millisecond,
//	    Timeout:        10 * time.Second,
//	    Retryable:      retry.RetryableStatus,
//	}, func(ctx context.Context) (int, error) {
//	    return callCarrier(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Predicate reports whether an attempt that ended with status/err should be
// tried again. status is 0 when no response was received.
type Predicate func(status int, err error) bool

// Policy parameterises Do. The zero value makes a single attempt.
type Policy struct {
	// MaxAttempts is the total number of attempts (1 = no retry).
	MaxAttempts int
	// InitialBackoff is the wait before the second attempt; it doubles after
	// every further failure.
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts (0 = uncapped).
	MaxBackoff time.Duration
	// Timeout bounds each individual attempt (0 = only ctx bounds it).
	Timeout time.Duration
	// Retryable classifies failures; nil means RetryableStatus.
	Retryable Predicate
	// OnRetry is called before each wait, for logging and metrics.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// StatusError is returned by Do when the last attempt produced a response
// with a failing status and no transport error.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("retry: unexpected status %d", e.Status)
}

var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooEarly:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// RetryableStatus retries transport errors, per-attempt timeouts and the
// transient HTTP statuses (408, 425, 429, 500, 502, 503, 504). A caller's
// cancellation is never retried.
func RetryableStatus(status int, err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if err != nil && status == 0 {
		return true
	}
	return retryableStatuses[status]
}

// Failed reports whether an attempt outcome counts as a failure: a non-nil
// error or a status outside 2xx/3xx.
func Failed(status int, err error) bool {
	return err != nil || status >= 400
}

// Do calls fn until it succeeds, the failure is not retryable, the attempt
// limit is reached, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) (int, error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = RetryableStatus
	}

	wait := p.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := runAttempt(ctx, p.Timeout, fn)
		if !Failed(status, err) {
			return nil
		}

		lastErr = err
		if lastErr == nil {
			lastErr = &StatusError{Status: status}
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry: attempt %d: %w", attempt, ctx.Err())
		}
		if !retryable(status, err) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, lastErr)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry: attempt %d: %w", attempt, err)
		}

		wait *= 2
		if p.MaxBackoff > 0 && wait > p.MaxBackoff {
			wait = p.MaxBackoff
		}
	}

	return fmt.Errorf("retry: all %d attempts failed: %w", attempts, lastErr)
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(context.Context) (int, error)) (int, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
