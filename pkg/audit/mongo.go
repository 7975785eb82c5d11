package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/eshop/pkg/logger"
)

const (
	queueSize  = 4096
	batchSize  = 50
	flushEvery = 2 * time.Second
	collection = "stock_movements"
)

// Inserter is the slice of *mongo.Collection the batcher needs.
type Inserter interface {
	InsertMany(ctx context.Context, docs []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// Batcher buffers movements in a channel and writes them with InsertMany
// from one background goroutine. Record never blocks: when the buffer is
// full, or after Close, the movement is dropped and counted.
type Batcher struct {
	sink    Inserter
	queue   chan Movement
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	closeFn func(context.Context) error
}

// NewBatcher starts the drain loop over sink.
func NewBatcher(sink Inserter) *Batcher {
	b := &Batcher{
		sink:  sink,
		queue: make(chan Movement, queueSize),
		done:  make(chan struct{}),
	}
	go b.drainLoop()
	return b
}

// ConnectMongo dials uri, ensures the indexes and returns a Batcher writing
// to <db>.stock_movements. Close disconnects the client.
func ConnectMongo(ctx context.Context, uri, db string) (*Batcher, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(10))
	if err != nil {
		return nil, fmt.Errorf("audit: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("audit: mongo ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	_, err = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "size", Value: 1}, {Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "ref", Value: 1}}},
	})
	if err != nil {
		logger.Warn("audit: create indexes", "error", err)
	}

	b := NewBatcher(col)
	b.closeFn = client.Disconnect
	return b, nil
}

func (b *Batcher) Record(ctx context.Context, m Movement) {
	m = Stamp(ctx, m)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.dropped.Add(1)
		return
	}
	select {
	case b.queue <- m:
	default:
		b.dropped.Add(1)
	}
}

// Dropped reports how many movements were discarded.
func (b *Batcher) Dropped() int64 { return b.dropped.Load() }

// Close flushes pending movements and disconnects.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if b.closeFn != nil {
		return b.closeFn(ctx)
	}
	return nil
}

func (b *Batcher) drainLoop() {
	defer close(b.done)

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]interface{}, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := b.sink.InsertMany(ctx, batch); err != nil {
			logger.Error("audit: insert movements", "count", len(batch), "error", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case m, ok := <-b.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, m)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
