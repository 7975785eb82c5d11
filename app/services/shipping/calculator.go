package shipping

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
)

var tracer = otel.Tracer("github.com/shashiranjanraj/eshop/shipping")

// CartItem is one cart line as far as shipping cares.
type CartItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"  validate:"gte=1"`
}

// WeightSource returns weight_kg for the ids it knows. Missing ids are
// simply absent from the map.
type WeightSource interface {
	Weights(ctx context.Context, ids []string) (map[string]float64, error)
}

// Calculator combines the catalogue weight lookup with the rate tables.
type Calculator struct {
	weights WeightSource
}

func NewCalculator(weights WeightSource) *Calculator {
	return &Calculator{weights: weights}
}

// TotalWeight sums weight*quantity. Each distinct product is looked up
// once. The sum is exact decimal arithmetic, never rounded, so a cart just
// over a band edge is priced in the next band.
func (c *Calculator) TotalWeight(ctx context.Context, items []CartItem) float64 {
	ids := distinctIDs(items)

	known := map[string]float64{}
	if len(ids) > 0 {
		w, err := c.weights.Weights(ctx, ids)
		if err != nil {
			logger.WithCtx(ctx).Warn("shipping: weight lookup failed, using default unit weight",
				"products", len(ids), "error", err)
		} else {
			known = w
		}
	}

	total := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		kg, ok := known[it.ProductID]
		if !ok || kg <= 0 || math.IsNaN(kg) || math.IsInf(kg, 0) {
			kg = DefaultUnitWeightKg
		}
		total = total.Add(decimal.NewFromFloat(kg).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.InexactFloat64()
}

// Quote weighs the cart and prices it. It never fails.
func (c *Calculator) Quote(ctx context.Context, items []CartItem, method Method) (Quote, float64) {
	ctx, span := tracer.Start(ctx, "shipping.Quote")
	defer span.End()

	start := time.Now()
	weight := c.TotalWeight(ctx, items)
	q := QuoteFor(weight, method)

	span.SetAttributes(
		attribute.String("shipping.method", string(method)),
		attribute.Float64("shipping.weight_kg", weight),
		attribute.Int("shipping.total_czk", q.TotalCZK),
	)
	metrics.ShippingQuotes.WithLabelValues(string(method)).Inc()
	logger.WithCtx(ctx).Debug("shipping: quote computed",
		"method", method, "weight_kg", weight, "total_czk", q.TotalCZK, "duration", time.Since(start))

	return q, weight
}

func distinctIDs(items []CartItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
