// Package audit keeps a trail of every stock movement (sale, restock,
// rollback) for reconciliation with the warehouse.
//
//	rec.Record(ctx, audit.Movement{ProductID: "tee-classic", Size: "M", Delta: -2, StockAfter: 18, Reason: audit.ReasonSale, Ref: "ES-1a2b3c4d"})
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/shashiranjanraj/eshop/pkg/reqid"
)

// Reasons for a stock movement.
const (
	ReasonSale     = "sale"
	ReasonRestock  = "restock"
	ReasonRollback = "rollback"
)

// Movement is one stock change.
type Movement struct {
	At         time.Time `bson:"at"                   json:"at"`
	ProductID  string    `bson:"product_id"           json:"productId"`
	Size       string    `bson:"size"                 json:"size"`
	Delta      int       `bson:"delta"                json:"delta"`
	StockAfter int       `bson:"stock_after"          json:"stockAfter"`
	Reason     string    `bson:"reason"               json:"reason"`
	Ref        string    `bson:"ref,omitempty"        json:"ref,omitempty"`
	RequestID  string    `bson:"request_id,omitempty" json:"requestId,omitempty"`
}

// Recorder stores movements. Implementations must not block the caller.
type Recorder interface {
	Record(ctx context.Context, m Movement)
}

// Stamp fills At and RequestID when the caller left them empty.
func Stamp(ctx context.Context, m Movement) Movement {
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}
	if m.RequestID == "" {
		m.RequestID = reqid.FromCtx(ctx)
	}
	return m
}

// Nop discards movements; used when no MONGO_URI is configured.
type Nop struct{}

func (Nop) Record(context.Context, Movement) {}

// Memory keeps movements in a slice; used by tests and `eshop` dev runs.
type Memory struct {
	mu        sync.Mutex
	movements []Movement
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(ctx context.Context, mv Movement) {
	mv = Stamp(ctx, mv)
	m.mu.Lock()
	m.movements = append(m.movements, mv)
	m.mu.Unlock()
}

// Movements returns a snapshot in record order.
func (m *Memory) Movements() []Movement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Movement, len(m.movements))
	copy(out, m.movements)
	return out
}
