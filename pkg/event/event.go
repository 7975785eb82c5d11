// Package event is an in-process event dispatcher for domain events such as
// order.paid or stock.low.
package event

import (
	"context"
	"sync"

	"github.com/shashiranjanraj/eshop/pkg/logger"
)

// Event names fired by the shop.
const (
	OrderPaid             = "order.paid"
	OrderCancelled        = "order.cancelled"
	ShipmentStatusChanged = "shipment.status_changed"
	StockLow              = "stock.low"
)

// Handler receives an event payload.
type Handler func(ctx context.Context, payload any)

// Bus maps event names to listeners.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wildcard []func(ctx context.Context, name string, payload any)
}

func NewBus() *Bus { return &Bus{handlers: map[string][]Handler{}} }

var defaultBus = NewBus()

// Default returns the process-wide bus.
func Default() *Bus { return defaultBus }

// Listen registers a handler on the default bus.
func Listen(name string, h Handler) { defaultBus.Listen(name, h) }

// ListenAll registers a handler on the default bus for every event.
func ListenAll(h func(ctx context.Context, name string, payload any)) { defaultBus.ListenAll(h) }

// Fire dispatches synchronously on the default bus.
func Fire(ctx context.Context, name string, payload any) { defaultBus.Fire(ctx, name, payload) }

// Flush removes all listeners from the default bus.
func Flush() { defaultBus.Flush() }

func (b *Bus) Listen(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// ListenAll registers h for every event; the admin feed uses it.
func (b *Bus) ListenAll(h func(ctx context.Context, name string, payload any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, h)
}

// Fire runs every listener in registration order. A panicking listener is
// logged and does not stop the others.
func (b *Bus) Fire(ctx context.Context, name string, payload any) {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	all := make([]func(context.Context, string, any), len(b.wildcard))
	copy(all, b.wildcard)
	b.mu.RUnlock()

	for _, h := range hs {
		safeCall(ctx, name, func() { h(ctx, payload) })
	}
	for _, h := range all {
		safeCall(ctx, name, func() { h(ctx, name, payload) })
	}
}

// FireAsync dispatches on a detached context and returns immediately.
func (b *Bus) FireAsync(ctx context.Context, name string, payload any) {
	go b.Fire(context.WithoutCancel(ctx), name, payload)
}

func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
	b.wildcard = nil
}

func safeCall(ctx context.Context, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", name, "panic", r)
		}
	}()
	fn()
}
