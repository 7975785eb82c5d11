// Package inventory checks and adjusts per-size stock around checkout,
// payment and cancellation.
//
// Every operation returns a structured result instead of an error; the HTTP
// layer decides how a failure is presented.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/pkg/audit"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
)

var tracer = otel.Tracer("github.com/shashiranjanraj/eshop/inventory")

// DefaultLowStockThreshold is used when the adjuster is built with 0.
const DefaultLowStockThreshold = 5

// Item is one requested (product, size, quantity) line.
type Item struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size"      validate:"required"`
	Quantity  int    `json:"quantity"  validate:"gte=1"`
	Name      string `json:"name"`
}

func (it Item) label() string {
	if it.Name != "" {
		return it.Name
	}
	return it.ProductID
}

// Availability is the outcome of a read-only pre-check.
type Availability struct {
	Available bool     `json:"available"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

// UpdatedItem reports a SKU after a stock change.
type UpdatedItem struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Stock     int    `json:"stock"`
}

// Result is the outcome of a decrease or increase.
type Result struct {
	Success      bool          `json:"success"`
	UpdatedItems []UpdatedItem `json:"updatedItems"`
	Error        string        `json:"error,omitempty"`
}

// LowStock is the payload of event.StockLow.
type LowStock struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

// Adjuster owns every stock mutation.
type Adjuster struct {
	stock     *repositories.StockRepository
	recorder  audit.Recorder
	bus       *event.Bus
	threshold int
	// pending is set on bound adjusters; movements and alerts wait there
	// until the caller's transaction has committed.
	pending *pending
}

type pending struct {
	mu        sync.Mutex
	movements []audit.Movement
	low       []LowStock
}

// New builds an Adjuster. A nil recorder discards movements and a nil bus
// uses the default one.
func New(stock *repositories.StockRepository, recorder audit.Recorder, bus *event.Bus, lowStockThreshold int) *Adjuster {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if bus == nil {
		bus = event.Default()
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &Adjuster{stock: stock, recorder: recorder, bus: bus, threshold: lowStockThreshold}
}

// Bind returns an adjuster whose stock changes join tx. A decrease then runs
// in a savepoint and commits with the caller's transaction. Audit movements
// and low-stock alerts are held back until Flush, which the caller invokes
// once tx has committed; a rolled-back tx simply never flushes.
func (a *Adjuster) Bind(tx *gorm.DB) *Adjuster {
	c := *a
	c.stock = a.stock.WithDB(tx)
	c.pending = &pending{}
	return &c
}

// Flush emits what a bound adjuster held back. It is a no-op on an unbound
// adjuster and after the first call.
func (a *Adjuster) Flush(ctx context.Context) {
	if a.pending == nil {
		return
	}
	a.pending.mu.Lock()
	movements, low := a.pending.movements, a.pending.low
	a.pending.movements, a.pending.low = nil, nil
	a.pending.mu.Unlock()

	for _, m := range movements {
		a.recorder.Record(ctx, m)
	}
	for _, l := range low {
		a.bus.FireAsync(ctx, event.StockLow, l)
	}
}

func (a *Adjuster) record(ctx context.Context, m audit.Movement) {
	if a.pending != nil {
		// Stamp now, while ctx still carries the request id.
		m = audit.Stamp(ctx, m)
		a.pending.mu.Lock()
		a.pending.movements = append(a.pending.movements, m)
		a.pending.mu.Unlock()
		return
	}
	a.recorder.Record(ctx, m)
}

func (a *Adjuster) lowStock(ctx context.Context, l LowStock) {
	if a.pending != nil {
		a.pending.mu.Lock()
		a.pending.low = append(a.pending.low, l)
		a.pending.mu.Unlock()
		return
	}
	a.bus.FireAsync(ctx, event.StockLow, l)
}

func msgNotFound(it Item) string {
	return fmt.Sprintf("Produkt %s (velikost %s) nebyl nalezen", it.label(), it.Size)
}

func msgInsufficient(it Item, stock int) string {
	return fmt.Sprintf("Nedostatek zásob pro %s (velikost %s): požadováno %d, skladem %d", it.label(), it.Size, it.Quantity, stock)
}

func msgLowStock(it Item, stock int) string {
	return fmt.Sprintf("Poslední kusy: %s (velikost %s), skladem pouze %d", it.label(), it.Size, stock)
}

func msgLookupFailed(it Item) string {
	return fmt.Sprintf("Nepodařilo se ověřit zásoby pro %s (velikost %s)", it.label(), it.Size)
}

func msgInvalidQuantity(it Item) string {
	return fmt.Sprintf("Neplatné množství pro %s (velikost %s): %d", it.label(), it.Size, it.Quantity)
}

// CheckAvailability reads every SKU and reports shortfalls and low-stock
// warnings. It reserves nothing.
func (a *Adjuster) CheckAvailability(ctx context.Context, items []Item) Availability {
	ctx, span := tracer.Start(ctx, "inventory.CheckAvailability", trace.WithAttributes(attribute.Int("inventory.items", len(items))))
	defer span.End()
	log := logger.WithCtx(ctx)

	out := Availability{Errors: []string{}, Warnings: []string{}}
	for _, it := range items {
		if it.Quantity <= 0 {
			out.Errors = append(out.Errors, msgInvalidQuantity(it))
			continue
		}

		sku, err := a.stock.FindSKU(ctx, it.ProductID, it.Size)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			out.Errors = append(out.Errors, msgNotFound(it))
			continue
		case err != nil:
			log.Error("inventory: sku lookup failed", "product_id", it.ProductID, "size", it.Size, "error", err)
			out.Errors = append(out.Errors, msgLookupFailed(it))
			continue
		}

		if sku.Stock < it.Quantity {
			out.Errors = append(out.Errors, msgInsufficient(it, sku.Stock))
			continue
		}
		if sku.Stock > 0 && sku.Stock <= a.threshold {
			out.Warnings = append(out.Warnings, msgLowStock(it, sku.Stock))
		}
	}

	out.Available = len(out.Errors) == 0
	outcome := "ok"
	if !out.Available {
		outcome = "insufficient"
	}
	metrics.InventoryAdjustments.WithLabelValues("check", outcome).Inc()
	span.SetAttributes(attribute.Bool("inventory.available", out.Available))
	log.Info("inventory: availability checked", "items", len(items), "available", out.Available, "errors", len(out.Errors), "warnings", len(out.Warnings))
	return out
}

// errAbort rolls the batch transaction back once the failure message is set.
var errAbort = errors.New("inventory: batch aborted")

// DecreaseInventory takes every item out of stock in one transaction. Each
// line is a conditional decrement, so stock never goes negative and
// concurrent buyers of the last unit cannot both succeed. The first failing
// line rolls the whole batch back.
func (a *Adjuster) DecreaseInventory(ctx context.Context, items []Item, ref string) Result {
	ctx, span := tracer.Start(ctx, "inventory.DecreaseInventory", trace.WithAttributes(
		attribute.Int("inventory.items", len(items)),
		attribute.String("inventory.ref", ref),
	))
	defer span.End()
	log := logger.WithCtx(ctx)

	var (
		updated []UpdatedItem
		failMsg string
		outcome = "ok"
	)

	err := a.stock.WithinTx(ctx, func(tx *repositories.StockRepository) error {
		updated = updated[:0]
		for _, it := range items {
			if it.Quantity <= 0 {
				failMsg, outcome = msgInvalidQuantity(it), "error"
				return errAbort
			}

			sku, err := tx.Decrement(ctx, it.ProductID, it.Size, it.Quantity)
			switch {
			case errors.Is(err, repositories.ErrNotFound):
				failMsg, outcome = msgNotFound(it), "not_found"
				return errAbort
			case errors.Is(err, repositories.ErrInsufficientStock):
				failMsg, outcome = msgInsufficient(it, sku.Stock), "insufficient"
				return errAbort
			case err != nil:
				failMsg, outcome = msgLookupFailed(it), "error"
				return err
			}

			updated = append(updated, UpdatedItem{
				ProductID: it.ProductID, Size: it.Size, Name: it.label(),
				Quantity: it.Quantity, Stock: sku.Stock,
			})
		}
		return nil
	})

	if err != nil {
		if failMsg == "" {
			failMsg, outcome = "Aktualizace zásob selhala", "error"
		}
		metrics.InventoryAdjustments.WithLabelValues("decrease", outcome).Inc()
		span.SetStatus(codes.Error, failMsg)
		if errors.Is(err, errAbort) {
			log.Warn("inventory: decrease rejected", "ref", ref, "reason", failMsg)
		} else {
			log.Error("inventory: decrease failed", "ref", ref, "error", err)
		}
		return Result{Success: false, UpdatedItems: []UpdatedItem{}, Error: failMsg}
	}

	metrics.InventoryAdjustments.WithLabelValues("decrease", "ok").Inc()
	for _, u := range updated {
		a.record(ctx, audit.Movement{
			ProductID: u.ProductID, Size: u.Size, Delta: -u.Quantity,
			StockAfter: u.Stock, Reason: audit.ReasonSale, Ref: ref,
		})
		if before := u.Stock + u.Quantity; before > a.threshold && u.Stock <= a.threshold {
			a.lowStock(ctx, LowStock{
				ProductID: u.ProductID, Size: u.Size, Name: u.Name,
				Stock: u.Stock, Threshold: a.threshold,
			})
		}
	}
	log.Info("inventory: stock decreased", "ref", ref, "items", len(updated))

	if updated == nil {
		updated = []UpdatedItem{}
	}
	return Result{Success: true, UpdatedItems: updated}
}

// IncreaseInventory restocks items, e.g. after a cancellation.
func (a *Adjuster) IncreaseInventory(ctx context.Context, items []Item, ref string) Result {
	return a.increase(ctx, items, ref, audit.ReasonRestock)
}

// Rollback is IncreaseInventory recorded as a manual rollback.
func (a *Adjuster) Rollback(ctx context.Context, items []Item, ref string) Result {
	return a.increase(ctx, items, ref, audit.ReasonRollback)
}

// increase is best effort: each line is its own atomic update, failures are
// logged and skipped, and UpdatedItems lists exactly what changed.
func (a *Adjuster) increase(ctx context.Context, items []Item, ref, reason string) Result {
	ctx, span := tracer.Start(ctx, "inventory.IncreaseInventory", trace.WithAttributes(
		attribute.Int("inventory.items", len(items)),
		attribute.String("inventory.ref", ref),
		attribute.String("inventory.reason", reason),
	))
	defer span.End()
	log := logger.WithCtx(ctx)

	updated := []UpdatedItem{}
	for _, it := range items {
		if it.Quantity <= 0 {
			log.Warn("inventory: skipping restock with invalid quantity", "product_id", it.ProductID, "size", it.Size, "quantity", it.Quantity)
			metrics.InventoryAdjustments.WithLabelValues("increase", "error").Inc()
			continue
		}

		sku, err := a.stock.Increment(ctx, it.ProductID, it.Size, it.Quantity)
		if err != nil {
			outcome := "error"
			if errors.Is(err, repositories.ErrNotFound) {
				outcome = "not_found"
			}
			metrics.InventoryAdjustments.WithLabelValues("increase", outcome).Inc()
			log.Error("inventory: restock failed, skipping", "ref", ref, "product_id", it.ProductID, "size", it.Size, "error", err)
			continue
		}

		metrics.InventoryAdjustments.WithLabelValues("increase", "ok").Inc()
		a.record(ctx, audit.Movement{
			ProductID: it.ProductID, Size: it.Size, Delta: it.Quantity,
			StockAfter: sku.Stock, Reason: reason, Ref: ref,
		})
		updated = append(updated, UpdatedItem{
			ProductID: it.ProductID, Size: it.Size, Name: it.label(),
			Quantity: it.Quantity, Stock: sku.Stock,
		})
	}

	span.SetAttributes(attribute.Int("inventory.updated", len(updated)))
	log.Info("inventory: stock increased", "ref", ref, "reason", reason, "requested", len(items), "updated", len(updated))
	return Result{Success: true, UpdatedItems: updated}
}
