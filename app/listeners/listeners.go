// Package listeners connects domain events to their side effects: queued
// jobs, the admin live feed and Slack alerts.
package listeners

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/eshop/app/jobs"
	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/orders"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/notification"
	"github.com/shashiranjanraj/eshop/pkg/queue"
)

// Dispatcher queues a job.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// Publisher broadcasts to the admin feed.
type Publisher interface {
	Publish(event string, data any)
}

type Deps struct {
	Queue   Dispatcher
	Feed    Publisher
	Alerter notification.Alerter
}

// Register subscribes every listener on bus.
func Register(bus *event.Bus, d Deps) {
	bus.Listen(event.OrderPaid, func(ctx context.Context, payload any) {
		e, ok := payload.(orders.Event)
		if !ok {
			return
		}
		dispatch(ctx, d.Queue, &jobs.CreateShipment{OrderID: e.OrderID})
		dispatch(ctx, d.Queue, &jobs.SendOrderStatusEmail{OrderID: e.OrderID, Status: models.OrderPaid})
	})

	bus.Listen(event.OrderCancelled, func(ctx context.Context, payload any) {
		e, ok := payload.(orders.Event)
		if !ok {
			return
		}
		dispatch(ctx, d.Queue, &jobs.SendOrderStatusEmail{OrderID: e.OrderID, Status: models.OrderCancelled})
	})

	bus.Listen(event.ShipmentStatusChanged, func(ctx context.Context, payload any) {
		e, ok := payload.(shipments.Event)
		if !ok {
			return
		}
		switch {
		case e.Created:
			dispatch(ctx, d.Queue, &jobs.SendOrderStatusEmail{OrderID: e.OrderID, Status: models.OrderShipped})
		case e.StatusCode == models.PacketDelivered:
			dispatch(ctx, d.Queue, &jobs.SendOrderStatusEmail{OrderID: e.OrderID, Status: models.OrderDelivered})
		}
	})

	if d.Alerter != nil {
		bus.Listen(event.StockLow, func(ctx context.Context, payload any) {
			e, ok := payload.(inventory.LowStock)
			if !ok {
				return
			}
			err := d.Alerter.Alert(ctx, notification.Alert{
				Title: "Docházejí zásoby",
				Text:  fmt.Sprintf("%s (velikost %s): skladem %d ks", e.Name, e.Size, e.Stock),
				Level: notification.Warning,
				Fields: map[string]string{
					"Produkt": e.ProductID,
					"Limit":   fmt.Sprint(e.Threshold),
				},
			})
			if err != nil {
				logger.WithCtx(ctx).Warn("listeners: low-stock alert failed", "product_id", e.ProductID, "size", e.Size, "error", err)
			}
		})
	}

	if d.Feed != nil {
		bus.ListenAll(func(_ context.Context, name string, payload any) {
			d.Feed.Publish(name, payload)
		})
	}
}

func dispatch(ctx context.Context, q Dispatcher, job queue.Job) {
	if err := q.Dispatch(ctx, job); err != nil {
		logger.WithCtx(ctx).Error("listeners: dispatch failed", "job", queue.TypeName(job), "error", err)
	}
}
