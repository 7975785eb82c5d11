package listeners_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/eshop/app/jobs"
	"github.com/shashiranjanraj/eshop/app/listeners"
	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/orders"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/notification"
	"github.com/shashiranjanraj/eshop/pkg/queue"
)

type recorder struct {
	mu     sync.Mutex
	jobs   []queue.Job
	feed   []string
	alerts []notification.Alert
}

func (r *recorder) Dispatch(_ context.Context, job queue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recorder) Publish(name string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feed = append(r.feed, name)
}

func (r *recorder) Alert(_ context.Context, a notification.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func setup() (*event.Bus, *recorder) {
	bus := event.NewBus()
	rec := &recorder{}
	listeners.Register(bus, listeners.Deps{Queue: rec, Feed: rec, Alerter: rec})
	return bus, rec
}

func TestOrderPaidQueuesShipmentAndEmail(t *testing.T) {
	bus, rec := setup()
	bus.Fire(context.Background(), event.OrderPaid, orders.Event{OrderID: 3, Number: "ES-3", Status: models.OrderPaid})

	require.Len(t, rec.jobs, 2)
	assert.Equal(t, &jobs.CreateShipment{OrderID: 3}, rec.jobs[0])
	assert.Equal(t, &jobs.SendOrderStatusEmail{OrderID: 3, Status: models.OrderPaid}, rec.jobs[1])
	assert.Equal(t, []string{event.OrderPaid}, rec.feed)
}

func TestShipmentEventsEmailOnlyOnMilestones(t *testing.T) {
	bus, rec := setup()
	ctx := context.Background()

	bus.Fire(ctx, event.ShipmentStatusChanged, shipments.Event{OrderID: 1, StatusCode: 1, Created: true})
	bus.Fire(ctx, event.ShipmentStatusChanged, shipments.Event{OrderID: 1, StatusCode: 4})
	bus.Fire(ctx, event.ShipmentStatusChanged, shipments.Event{OrderID: 1, StatusCode: models.PacketDelivered})

	require.Len(t, rec.jobs, 2)
	assert.Equal(t, models.OrderShipped, rec.jobs[0].(*jobs.SendOrderStatusEmail).Status)
	assert.Equal(t, models.OrderDelivered, rec.jobs[1].(*jobs.SendOrderStatusEmail).Status)
	assert.Len(t, rec.feed, 3)
}

func TestStockLowAlerts(t *testing.T) {
	bus, rec := setup()
	bus.Fire(context.Background(), event.StockLow, inventory.LowStock{ProductID: "tee", Size: "XL", Name: "Tričko", Stock: 2, Threshold: 5})

	require.Len(t, rec.alerts, 1)
	assert.Equal(t, "Tričko (velikost XL): skladem 2 ks", rec.alerts[0].Text)
	assert.Equal(t, notification.Warning, rec.alerts[0].Level)
	assert.Empty(t, rec.jobs)
}
