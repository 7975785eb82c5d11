// Package queue runs background jobs (order e-mails, shipment creation)
// outside the request path.
//
//	queue.Register(func() queue.Job { return &jobs.CreateShipment{} })
//	queue.Dispatch(ctx, &jobs.CreateShipment{OrderID: 42})
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
)

// Job is the interface every queued job must satisfy. Jobs are serialised
// with encoding/json, so their exported fields are the payload.
type Job interface {
	Handle(ctx context.Context) error
}

// FailedJob holds information about a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

// Manager owns a driver, the job registry and the failure log.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	maxRetry int
	backoff  time.Duration
	db       *gorm.DB
}

// NewManager returns a Manager on driver with 3 attempts and 1s linear backoff.
func NewManager(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  time.Second,
	}
}

var defaultManager = NewManager(NewMemoryDriver())

// Default returns the process-wide manager.
func Default() *Manager { return defaultManager }

// SetDriver swaps the driver of the default manager (e.g. Redis).
func SetDriver(d Driver) { defaultManager.SetDriver(d) }

// Register makes a job type available to the default manager's workers.
func Register(factory func() Job) { defaultManager.Register(factory) }

// Dispatch pushes job onto the default queue.
func Dispatch(ctx context.Context, job Job) error { return defaultManager.Dispatch(ctx, job) }

// StartWorkers launches n workers on the default manager.
func StartWorkers(ctx context.Context, n int) { defaultManager.StartWorkers(ctx, n) }

// FailedJobs returns the default manager's failures.
func FailedJobs() []FailedJob { return defaultManager.FailedJobs() }

// SetDriver swaps the underlying driver.
func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driver = d
}

// SetRetry sets how many attempts a job gets and the base backoff between
// them (attempt n waits n*backoff).
func (m *Manager) SetRetry(attempts int, backoff time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempts < 1 {
		attempts = 1
	}
	m.maxRetry = attempts
	m.backoff = backoff
}

// Register records the job type produced by factory under its type name.
func (m *Manager) Register(factory func() Job) {
	name := TypeName(factory())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

// TypeName is the registry key for a job.
func TypeName(job Job) string { return fmt.Sprintf("%T", job) }

type envelope struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Dispatched time.Time       `json:"dispatched_at"`
}

// Dispatch pushes job onto the queue.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	typeName := TypeName(job)

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", typeName, err)
	}

	env, err := json.Marshal(envelope{Type: typeName, Payload: payload, Dispatched: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	m.mu.RLock()
	d := m.driver
	m.mu.RUnlock()

	if err := d.Push(ctx, env); err != nil {
		return fmt.Errorf("queue: push %s: %w", typeName, err)
	}
	return nil
}

// StartWorkers launches n concurrent workers. They run until ctx is cancelled.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		go m.work(ctx)
	}
	logger.Info("queue: workers started", "count", n)
}

func (m *Manager) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m.mu.RLock()
		d := m.driver
		m.mu.RUnlock()

		raw, err := d.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if raw == nil {
			continue
		}

		m.Process(ctx, raw)
	}
}

// Process decodes one envelope and runs the job with retries. Exported for
// the `queue:work --once` command and tests.
func (m *Manager) Process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()

	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}

	m.runWithRetry(ctx, job, env.Type)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, typeName string) {
	m.mu.RLock()
	attempts, backoff := m.maxRetry, m.backoff
	m.mu.RUnlock()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err := job.Handle(ctx)
		if err == nil {
			metrics.RecordQueueJob(typeName, "success", start)
			logger.Debug("queue: job processed", "type", typeName, "attempt", attempt)
			return
		}

		lastErr = err
		metrics.RecordQueueJob(typeName, "failure", start)
		logger.Warn("queue: job failed", "type", typeName, "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			m.persistFailed(job, typeName, ctx.Err(), attempt)
			return
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}

	m.persistFailed(job, typeName, lastErr, attempts)
	logger.Error("queue: job exhausted retries", "type", typeName, "error", lastErr)
}

// FailedJobs returns a snapshot of every job that exhausted its retries.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}
