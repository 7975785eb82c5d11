package models

import "time"

const (
	OrderPending       = "pending"
	OrderPaymentFailed = "payment_failed"
	OrderPaid          = "paid"
	OrderStockConflict = "stock_conflict"
	OrderShipped       = "shipped"
	OrderDelivered     = "delivered"
	OrderCancelled     = "cancelled"
)

const (
	DeliveryPickup       = "pickup"
	DeliveryHomeDelivery = "home_delivery"
)

// Order is a checkout. Shipping fields snapshot the quote shown at checkout.
type Order struct {
	ID             uint   `gorm:"primaryKey"                 json:"-"`
	Number         string `gorm:"size:32;uniqueIndex;not null" json:"number"`
	Status         string `gorm:"size:32;not null;index"     json:"status"`
	Email          string `gorm:"size:255;not null"          json:"email"`
	Name           string `gorm:"size:255;not null"          json:"name"`
	Phone          string `gorm:"size:32"                    json:"phone"`
	DeliveryMethod string `gorm:"size:32;not null"           json:"deliveryMethod"`
	PickupPointID  string `gorm:"size:32"                    json:"pickupPointId,omitempty"`
	Street         string `gorm:"size:255"                   json:"street,omitempty"`
	City           string `gorm:"size:128"                   json:"city,omitempty"`
	Zip            string `gorm:"size:16"                    json:"zip,omitempty"`

	ItemsCZK         int     `gorm:"not null" json:"itemsCZK"`
	ShippingBaseCZK  int     `json:"shippingBaseCZK"`
	ShippingFuelCZK  int     `json:"shippingFuelCZK"`
	ShippingTollCZK  float64 `json:"shippingTollCZK"`
	ShippingExtraCZK int     `json:"shippingExtraCZK"`
	ShippingCZK      int     `gorm:"not null" json:"shippingCZK"`
	TotalCZK         int     `gorm:"not null" json:"totalCZK"`
	WeightKg         float64 `json:"weightKg"`

	PaymentSessionID string `gorm:"size:255;index" json:"paymentSessionId,omitempty"`
	// StockTaken is set once the order's items were decremented from stock.
	StockTaken bool `gorm:"not null;default:false" json:"stockTaken"`

	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Items    []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	Shipment *Shipment   `gorm:"foreignKey:OrderID" json:"shipment,omitempty"`
}

type OrderItem struct {
	ID           uint   `gorm:"primaryKey"             json:"-"`
	OrderID      uint   `gorm:"not null;index"         json:"-"`
	ProductID    string `gorm:"size:64;not null"       json:"productId"`
	Size         string `gorm:"size:32;not null"       json:"size"`
	Name         string `gorm:"size:255"               json:"name"`
	Quantity     int    `gorm:"not null"               json:"quantity"`
	UnitPriceCZK int    `gorm:"not null"               json:"unitPriceCZK"`
}
