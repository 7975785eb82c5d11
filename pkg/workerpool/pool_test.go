package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/eshop/pkg/workerpool"
)

func TestPool_SubmitAndExecute(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Shutdown()

	const n = 100
	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() {
			defer wg.Done()
			count.Add(1)
		}))
	}

	wg.Wait()
	assert.Equal(t, int64(n), count.Load())
}

func TestPool_ErrPoolFull(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	blocker := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() {
		close(started)
		<-blocker
	}))
	<-started

	// Buffer is 2x the worker count.
	require.NoError(t, pool.TrySubmit(func() {}))
	require.NoError(t, pool.TrySubmit(func() {}))
	assert.ErrorIs(t, pool.TrySubmit(func() {}), workerpool.ErrPoolFull)

	close(blocker)
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	pool := workerpool.New(1)
	blocker := make(chan struct{})
	defer func() { close(blocker); pool.Shutdown() }()

	started := make(chan struct{})
	require.NoError(t, pool.TrySubmit(func() { close(started); <-blocker }))
	<-started
	require.NoError(t, pool.TrySubmit(func() {}))
	require.NoError(t, pool.TrySubmit(func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Submit(ctx, func() {}), context.DeadlineExceeded)
}

func TestPool_ErrPoolClosed(t *testing.T) {
	pool := workerpool.New(2)
	pool.Shutdown()
	pool.Shutdown()

	assert.ErrorIs(t, pool.TrySubmit(func() {}), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.Submit(context.Background(), func() {}), workerpool.ErrPoolClosed)
}

func TestPool_PanicRecovery(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	require.NoError(t, pool.Submit(context.Background(), func() { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestEach_BoundsConcurrencyAndCollectsErrors(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var inFlight, peak atomic.Int32

	errs := workerpool.Each(context.Background(), 3, items, func(_ context.Context, n int) error {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		if n%5 == 0 {
			return errors.New("bad item")
		}
		return nil
	})

	assert.Len(t, errs, 2)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestEach_RecoversPanics(t *testing.T) {
	errs := workerpool.Each(context.Background(), 2, []string{"a", "b"}, func(_ context.Context, s string) error {
		if s == "b" {
			panic("carrier exploded")
		}
		return nil
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "carrier exploded")
}
