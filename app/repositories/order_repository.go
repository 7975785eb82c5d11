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

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order together with its items.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	defer metrics.ObserveDBQuery("order.create", time.Now())

	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("repositories: create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) ByID(ctx context.Context, id uint) (*models.Order, error) {
	return r.first(ctx, "order.by_id", "id = ?", id)
}

func (r *OrderRepository) ByNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.first(ctx, "order.by_number", "number = ?", number)
}

func (r *OrderRepository) BySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.first(ctx, "order.by_session", "payment_session_id = ?", sessionID)
}

func (r *OrderRepository) first(ctx context.Context, op, query string, arg any) (*models.Order, error) {
	defer metrics.ObserveDBQuery(op, time.Now())

	var o models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Shipment").
		Where(query, arg).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: %s: %w", op, err)
	}
	return &o, nil
}

// Update writes the given columns for order id.
func (r *OrderRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	defer metrics.ObserveDBQuery("order.update", time.Now())

	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("repositories: update order %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition moves the order to status `to` only if it is currently in one
// of `from`. Losing the race returns ErrStaleStatus, so exactly one caller
// wins each transition.
func (r *OrderRepository) Transition(ctx context.Context, id uint, to string, from []string, extra map[string]any) error {
	defer metrics.ObserveDBQuery("order.transition", time.Now())

	fields := map[string]any{"status": to}
	for k, v := range extra {
		fields[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("repositories: transition order %d to %s: %w", id, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}
