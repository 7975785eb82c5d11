package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
)

// StockRepository reads and adjusts per-size stock counters.
type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

// WithDB returns a copy bound to db, typically an enclosing transaction.
func (r *StockRepository) WithDB(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

// WithinTx runs fn with a repository bound to one transaction. fn must use
// the repository it is given, never the outer one.
func (r *StockRepository) WithinTx(ctx context.Context, fn func(tx *StockRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&StockRepository{db: tx})
	})
}

// FindSKU returns the (productID, size) row or ErrNotFound.
func (r *StockRepository) FindSKU(ctx context.Context, productID, size string) (models.SKU, error) {
	defer metrics.ObserveDBQuery("sku.find", time.Now())

	var sku models.SKU
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND size = ?", productID, size).
		First(&sku).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sku, ErrNotFound
	}
	if err != nil {
		return sku, fmt.Errorf("repositories: find sku %s/%s: %w", productID, size, err)
	}
	return sku, nil
}

// Decrement subtracts qty with a single conditional UPDATE so concurrent
// buyers can never drive stock below zero. On ErrInsufficientStock the
// returned SKU carries the stock actually available.
func (r *StockRepository) Decrement(ctx context.Context, productID, size string, qty int) (models.SKU, error) {
	start := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.SKU{}).
		Where("product_id = ? AND size = ? AND stock >= ?", productID, size, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	metrics.ObserveDBQuery("sku.decrement", start)

	if res.Error != nil {
		return models.SKU{}, fmt.Errorf("repositories: decrement %s/%s: %w", productID, size, res.Error)
	}

	sku, err := r.FindSKU(ctx, productID, size)
	if err != nil {
		return sku, err
	}
	if res.RowsAffected == 0 {
		return sku, ErrInsufficientStock
	}
	return sku, nil
}

// Increment adds qty atomically and returns the updated row.
func (r *StockRepository) Increment(ctx context.Context, productID, size string, qty int) (models.SKU, error) {
	start := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.SKU{}).
		Where("product_id = ? AND size = ?", productID, size).
		Update("stock", gorm.Expr("stock + ?", qty))
	metrics.ObserveDBQuery("sku.increment", start)

	if res.Error != nil {
		return models.SKU{}, fmt.Errorf("repositories: increment %s/%s: %w", productID, size, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.SKU{}, ErrNotFound
	}
	return r.FindSKU(ctx, productID, size)
}
