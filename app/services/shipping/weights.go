package shipping

import (
	"context"
	"time"

	"github.com/shashiranjanraj/eshop/pkg/cache"
	"github.com/shashiranjanraj/eshop/pkg/logger"
)

const weightKeyPrefix = "eshop:product:weight:"

// cachedWeight is stored for unknown products too, so a cart full of
// weightless items does not hit the database on every quote.
type cachedWeight struct {
	Kg    float64 `json:"kg"`
	Known bool    `json:"known"`
}

// CachedWeights decorates a WeightSource with a cache.Store.
type CachedWeights struct {
	next  WeightSource
	store cache.Store
	ttl   time.Duration
}

func NewCachedWeights(next WeightSource, store cache.Store, ttl time.Duration) *CachedWeights {
	return &CachedWeights{next: next, store: store, ttl: ttl}
}

func (c *CachedWeights) Weights(ctx context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	var missing []string

	for _, id := range ids {
		var cw cachedWeight
		if c.store.Get(ctx, weightKeyPrefix+id, &cw) {
			if cw.Known {
				out[id] = cw.Kg
			}
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.next.Weights(ctx, missing)
	if err != nil {
		return nil, err
	}

	for _, id := range missing {
		kg, ok := fresh[id]
		if ok {
			out[id] = kg
		}
		if err := c.store.Set(ctx, weightKeyPrefix+id, cachedWeight{Kg: kg, Known: ok}, c.ttl); err != nil {
			logger.WithCtx(ctx).Warn("shipping: caching weight failed", "product_id", id, "error", err)
		}
	}
	return out, nil
}
