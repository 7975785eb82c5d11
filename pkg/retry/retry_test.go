package retry_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/eshop/pkg/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestDoSucceedsAfterTransientStatuses(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(4), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return http.StatusServiceUnavailable, nil
		}
		return http.StatusOK, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtAttemptCeiling(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		return http.StatusBadGateway, nil
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var se *retry.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestDoDoesNotRetryPermanentFailures(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return http.StatusBadRequest, nil
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoCustomPredicate(t *testing.T) {
	permanent := errors.New("fault")
	calls := 0
	p := fastPolicy(5)
	p.Retryable = func(_ int, err error) bool { return !errors.Is(err, permanent) }

	err := retry.Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoPerAttemptTimeoutIsRetried(t *testing.T) {
	calls := 0
	p := fastPolicy(2)
	p.Timeout = 5 * time.Millisecond

	err := retry.Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return 0, ctx.Err()
		}
		return http.StatusOK, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := retry.Policy{MaxAttempts: 10, InitialBackoff: time.Hour}

	err := retry.Do(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return http.StatusServiceUnavailable, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoBackoffDoublesAndCaps(t *testing.T) {
	var waits []time.Duration
	p := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     3 * time.Millisecond,
		OnRetry:        func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) },
	}

	_ = retry.Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errors.New("connection refused")
	})

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}, waits)
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retry.RetryableStatus(0, errors.New("dial tcp: refused")))
	assert.True(t, retry.RetryableStatus(http.StatusTooManyRequests, nil))
	assert.True(t, retry.RetryableStatus(http.StatusGatewayTimeout, nil))
	assert.False(t, retry.RetryableStatus(http.StatusNotFound, nil))
	assert.False(t, retry.RetryableStatus(0, context.Canceled))
}
