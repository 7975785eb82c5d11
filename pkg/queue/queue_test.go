package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/eshop/pkg/queue"
	"github.com/shashiranjanraj/eshop/pkg/testkit"
)

var (
	echoed   atomic.Int32
	failures atomic.Int32
	lastVal  atomic.Value
)

type echoJob struct {
	Val string
}

func (j *echoJob) Handle(context.Context) error {
	lastVal.Store(j.Val)
	echoed.Add(1)
	return nil
}

type failJob struct {
	OrderID uint
}

func (j *failJob) Handle(context.Context) error {
	failures.Add(1)
	return errors.New("always fails")
}

func newManager(t *testing.T) *queue.Manager {
	t.Helper()
	m := queue.NewManager(queue.NewMemoryDriver())
	m.SetRetry(2, time.Millisecond)
	m.Register(func() queue.Job { return &echoJob{} })
	m.Register(func() queue.Job { return &failJob{} })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.StartWorkers(ctx, 2)
	return m
}

func TestDispatchAndProcess(t *testing.T) {
	m := newManager(t)
	before := echoed.Load()

	require.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "hello"}))

	assert.Eventually(t, func() bool { return echoed.Load() == before+1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", lastVal.Load())
}

func TestFailedJobIsRetriedThenRecorded(t *testing.T) {
	m := newManager(t)
	before := failures.Load()

	require.NoError(t, m.Dispatch(context.Background(), &failJob{OrderID: 7}))

	assert.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, before+2, failures.Load())

	f := m.FailedJobs()[0]
	assert.Equal(t, "*queue_test.failJob", f.Type)
	assert.Equal(t, 2, f.Attempts)
	assert.EqualError(t, f.Err, "always fails")
}

func TestFailedJobPersistedToDB(t *testing.T) {
	db := testkit.NewDB(t)
	m := newManager(t)
	m.UseDB(db)

	require.NoError(t, m.Dispatch(context.Background(), &failJob{OrderID: 9}))

	assert.Eventually(t, func() bool {
		var n int64
		db.Model(&queue.FailedJobRecord{}).Count(&n)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	var rec queue.FailedJobRecord
	require.NoError(t, db.First(&rec).Error)
	assert.Equal(t, "*queue_test.failJob", rec.JobType)
	assert.JSONEq(t, `{"OrderID":9}`, rec.Payload)
}

func TestUnregisteredJobIsDropped(t *testing.T) {
	m := queue.NewManager(queue.NewMemoryDriver())
	m.Process(context.Background(), []byte(`{"type":"*nope.Job","payload":{}}`))
	assert.Empty(t, m.FailedJobs())
}

func TestDispatchConcurrent(t *testing.T) {
	m := newManager(t)
	before := echoed.Load()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "c"}))
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return echoed.Load() == before+20 }, time.Second, 5*time.Millisecond)
}

func TestMemoryDriverFull(t *testing.T) {
	d := queue.NewMemoryDriver()
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Push(context.Background(), []byte("x")))
	}
	assert.ErrorIs(t, d.Push(context.Background(), []byte("x")), queue.ErrQueueFull)
	assert.Equal(t, 1000, d.Len())
}
