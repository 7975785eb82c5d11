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

type ShipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func (r *ShipmentRepository) Create(ctx context.Context, s *models.Shipment) error {
	defer metrics.ObserveDBQuery("shipment.create", time.Now())

	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("repositories: create shipment: %w", err)
	}
	return nil
}

func (r *ShipmentRepository) ByOrderID(ctx context.Context, orderID uint) (*models.Shipment, error) {
	defer metrics.ObserveDBQuery("shipment.by_order", time.Now())

	var s models.Shipment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repositories: shipment for order %d: %w", orderID, err)
	}
	return &s, nil
}

// Open returns shipments whose tracking has not reached a final state.
func (r *ShipmentRepository) Open(ctx context.Context) ([]models.Shipment, error) {
	defer metrics.ObserveDBQuery("shipment.open", time.Now())

	var rows []models.Shipment
	err := r.db.WithContext(ctx).
		Where("status_code NOT IN ?", []int{models.PacketDelivered, models.PacketReturned, models.PacketCancelled}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: open shipments: %w", err)
	}
	return rows, nil
}

func (r *ShipmentRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	defer metrics.ObserveDBQuery("shipment.update", time.Now())

	res := r.db.WithContext(ctx).Model(&models.Shipment{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("repositories: update shipment %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
