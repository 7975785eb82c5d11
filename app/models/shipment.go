package models

import "time"

// Packeta tracking status codes that end a shipment's life.
const (
	PacketDelivered = 7
	PacketReturned  = 10
	PacketCancelled = 11
)

// Shipment is the Packeta packet created for an order.
type Shipment struct {
	ID            uint       `gorm:"primaryKey"             json:"-"`
	OrderID       uint       `gorm:"not null;uniqueIndex"   json:"-"`
	PacketID      string     `gorm:"size:32;not null;index" json:"packetId"`
	Barcode       string     `gorm:"size:64"                json:"barcode"`
	StatusCode    int        `gorm:"not null;default:1"     json:"statusCode"`
	StatusText    string     `gorm:"size:255"               json:"statusText"`
	LabelPath     string     `gorm:"size:255"               json:"labelPath,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Final reports whether tracking has reached a terminal state.
func (s Shipment) Final() bool {
	switch s.StatusCode {
	case PacketDelivered, PacketReturned, PacketCancelled:
		return true
	}
	return false
}
