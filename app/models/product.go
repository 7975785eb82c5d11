package models

import "time"

// Product is a catalogue entry. Stock lives per size in SKU.
type Product struct {
	ID        string    `gorm:"primaryKey;size:64"       json:"id"`
	Name      string    `gorm:"size:255;not null;index"  json:"name"`
	PriceCZK  int       `gorm:"not null;default:0"       json:"priceCZK"`
	WeightKg  *float64  `gorm:"column:weight_kg"         json:"weightKg,omitempty"`
	Active    bool      `gorm:"not null"                 json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SKUs []SKU `gorm:"foreignKey:ProductID" json:"skus,omitempty"`
}

// SKU is the stock counter for one size of one product.
type SKU struct {
	ID        uint      `gorm:"primaryKey"                                          json:"id"`
	ProductID string    `gorm:"size:64;not null;uniqueIndex:idx_skus_product_size"  json:"productId"`
	Size      string    `gorm:"size:32;not null;uniqueIndex:idx_skus_product_size"  json:"size"`
	Stock     int       `gorm:"not null;default:0;check:chk_skus_stock,stock >= 0"  json:"stock"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (SKU) TableName() string { return "skus" }
