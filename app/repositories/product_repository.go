package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindMany returns the products with the given ids keyed by id. Unknown
// ids are simply absent.
func (r *ProductRepository) FindMany(ctx context.Context, ids []string) (map[string]models.Product, error) {
	defer metrics.ObserveDBQuery("product.find_many", time.Now())

	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("repositories: find products: %w", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// Weights returns weight_kg for the ids that have one. Products without a
// weight are absent from the map.
func (r *ProductRepository) Weights(ctx context.Context, ids []string) (map[string]float64, error) {
	defer metrics.ObserveDBQuery("product.weights", time.Now())

	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		ID       string
		WeightKg *float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("id", "weight_kg").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: product weights: %w", err)
	}
	for _, row := range rows {
		if row.WeightKg != nil {
			out[row.ID] = *row.WeightKg
		}
	}
	return out, nil
}
