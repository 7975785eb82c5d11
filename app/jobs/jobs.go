// Package jobs holds the queued background work of the shop.
//
// Jobs are JSON-serialised by the queue, so dependencies are injected by the
// factories passed to Register rather than stored in the payload.
package jobs

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/mail"
	"github.com/shashiranjanraj/eshop/pkg/queue"
)

// OrderFinder loads an order with items and shipment.
type OrderFinder interface {
	ByID(ctx context.Context, id uint) (*models.Order, error)
}

// ShipmentCreator creates the carrier packet for an order.
type ShipmentCreator interface {
	CreateForOrder(ctx context.Context, orderID uint) (*models.Shipment, error)
}

// Deps are shared by every job.
type Deps struct {
	Orders    OrderFinder
	Shipments ShipmentCreator
	Mailer    mail.Sender
	ShopName  string
}

// Register makes every job type runnable on m.
func Register(m *queue.Manager, d Deps) {
	if d.ShopName == "" {
		d.ShopName = "eshop"
	}
	m.Register(func() queue.Job { return &SendOrderStatusEmail{deps: d} })
	m.Register(func() queue.Job { return &CreateShipment{deps: d} })
}

// CreateShipment registers the Packeta packet for a paid order.
type CreateShipment struct {
	OrderID uint `json:"order_id"`

	deps Deps
}

func (j *CreateShipment) Handle(ctx context.Context) error {
	_, err := j.deps.Shipments.CreateForOrder(ctx, j.OrderID)
	if errors.Is(err, shipments.ErrNotShippable) {
		// Cancelled or never paid; retrying cannot help.
		logger.WithCtx(ctx).Warn("jobs: shipment skipped", "order_id", j.OrderID, "error", err)
		return nil
	}
	return err
}
