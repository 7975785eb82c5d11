// Package workerpool bounds how many goroutines run at once, used to fan out
// carrier polling without opening hundreds of connections.
//
//	errs := workerpool.Each(ctx, 8, shipments, func(ctx context.Context, s models.Shipment) error {
//	    return sync(ctx, s)
//	})
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/eshop/pkg/logger"
)

// ErrPoolFull is returned by TrySubmit when every worker is busy and the
// buffer is at capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a fixed set of workers draining a buffered task channel.
type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closeMu sync.RWMutex
	closed  bool
}

// New starts size workers (at least one) with a buffer of 2*size tasks.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{tasks: make(chan func(), size*2)}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// TrySubmit enqueues task without blocking.
func (p *Pool) TrySubmit(task func()) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Submit blocks until the task is queued, ctx is done, or the pool closes.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// Safe to call more than once.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.closeMu.Lock()
		p.closed = true
		close(p.tasks)
		p.closeMu.Unlock()
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		safeRun(task)
	}
}

func safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "panic", r)
		}
	}()
	task()
}

// Each runs fn for every item on a pool of size workers and waits for all of
// them. The returned slice holds the non-nil errors (and recovered panics)
// in no particular order. Items not yet started when ctx is cancelled are
// skipped and reported as ctx.Err().
func Each[T any](ctx context.Context, size int, items []T, fn func(ctx context.Context, item T) error) []error {
	pool := New(size)

	var (
		mu   sync.Mutex
		errs []error
		done sync.WaitGroup
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, item := range items {
		item := item
		done.Add(1)
		err := pool.Submit(ctx, func() {
			defer done.Done()
			defer func() {
				if r := recover(); r != nil {
					record(fmt.Errorf("workerpool: panic: %v", r))
				}
			}()
			if ctx.Err() != nil {
				record(ctx.Err())
				return
			}
			if err := fn(ctx, item); err != nil {
				record(err)
			}
		})
		if err != nil {
			done.Done()
			record(err)
		}
	}

	done.Wait()
	pool.Shutdown()
	return errs
}
