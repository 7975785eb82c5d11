package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryRunsImmediatelyAndRepeats(t *testing.T) {
	s := New()
	s.tick = 10 * time.Millisecond

	var runs atomic.Int32
	s.Every(20 * time.Millisecond).Name("counter").Run(func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestWithoutOverlappingSkipsBusyEntry(t *testing.T) {
	s := New()
	s.tick = 5 * time.Millisecond

	release := make(chan struct{})
	var runs atomic.Int32
	s.Every(time.Millisecond).WithoutOverlapping().Run(func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	cancel()
	s.Wait()
}

func TestRunOnceRecoversPanics(t *testing.T) {
	err := RunOnce(context.Background(), "boom", func(context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	want := errors.New("carrier down")
	assert.ErrorIs(t, RunOnce(context.Background(), "fail", func(context.Context) error { return want }), want)
}

func TestListNamesEntries(t *testing.T) {
	s := New()
	s.Every(15 * time.Minute).Name("tracking:sync").Run(func(context.Context) error { return nil })
	s.Every(time.Hour).Run(func(context.Context) error { return nil })

	assert.Equal(t, []string{"tracking:sync  [every 15m0s]", "task-2  [every 1h0m0s]"}, s.List())
}
