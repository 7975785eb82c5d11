package shipments_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/packeta"
	"github.com/shashiranjanraj/eshop/pkg/storage"
	"github.com/shashiranjanraj/eshop/pkg/testkit"
)

type fakeCarrier struct {
	mu        sync.Mutex
	created   []packeta.PacketAttributes
	statuses  map[string]int
	failing   map[string]bool
	labels    int
	labelErr  error
	withdrawn []string
	// onCreate runs inside CreatePacket, before the packet id is returned.
	onCreate  func()
}

func (c *fakeCarrier) CreatePacket(_ context.Context, attrs packeta.PacketAttributes) (*packeta.PacketResult, error) {
	if c.onCreate != nil {
		c.onCreate()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, attrs)
	return &packeta.PacketResult{ID: "44100" + attrs.Number, Barcode: "Z44100" + attrs.Number}, nil
}

func (c *fakeCarrier) PacketStatus(_ context.Context, id string) (*packeta.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing[id] {
		return nil, errors.New("timeout")
	}
	code := c.statuses[id]
	return &packeta.Status{StatusCode: code, StatusText: "status " + id}, nil
}

func (c *fakeCarrier) PacketLabelPdf(_ context.Context, id string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels++
	if c.labelErr != nil {
		return nil, c.labelErr
	}
	return []byte("%PDF " + id), nil
}

func (c *fakeCarrier) CancelPacket(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withdrawn = append(c.withdrawn, id)
	return nil
}

type fixture struct {
	db      *gorm.DB
	svc     *shipments.Service
	carrier *fakeCarrier
	events  chan shipments.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testkit.NewDB(t)
	carrier := &fakeCarrier{statuses: map[string]int{}, failing: map[string]bool{}}
	bus := event.NewBus()
	events := make(chan shipments.Event, 16)
	bus.Listen(event.ShipmentStatusChanged, func(_ context.Context, p any) { events <- p.(shipments.Event) })

	svc := shipments.NewService(db, carrier, storage.NewLocalDisk(t.TempDir(), ""), bus,
		shipments.Options{HomeDeliveryCarrier: "106", SyncConcurrency: 2})
	return &fixture{db: db, svc: svc, carrier: carrier, events: events}
}

func (f *fixture) order(t *testing.T, number, status, method string) *models.Order {
	t.Helper()
	o := &models.Order{
		Number: number, Status: status, Email: "jana@example.cz", Name: "Jana Nováková",
		DeliveryMethod: method, PickupPointID: "4321", Street: "Dlouhá 1", City: "Praha", Zip: "11000",
		TotalCZK: 1287, WeightKg: 3,
	}
	require.NoError(t, f.db.Create(o).Error)
	return o
}

func TestCreateForOrderPickup(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "ES-1", models.OrderPaid, models.DeliveryPickup)

	sh, err := f.svc.CreateForOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "44100ES-1", sh.PacketID)

	attrs := f.carrier.created[0]
	assert.Equal(t, "4321", attrs.AddressID)
	assert.Equal(t, "Jana", attrs.Name)
	assert.Equal(t, "Nováková", attrs.Surname)
	assert.Equal(t, 1287, attrs.Value)
	assert.Equal(t, 0, attrs.COD)
	assert.Empty(t, attrs.Street)

	var fresh models.Order
	require.NoError(t, f.db.First(&fresh, o.ID).Error)
	assert.Equal(t, models.OrderShipped, fresh.Status)
	ev := <-f.events
	assert.Equal(t, models.OrderShipped, ev.OrderStatus)
	assert.True(t, ev.Created)

	again, err := f.svc.CreateForOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, sh.PacketID, again.PacketID)
	assert.Len(t, f.carrier.created, 1, "second call must not create another packet")
}

func TestCreateForOrderHomeDelivery(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "ES-2", models.OrderPaid, models.DeliveryHomeDelivery)

	_, err := f.svc.CreateForOrder(context.Background(), o.ID)
	require.NoError(t, err)
	attrs := f.carrier.created[0]
	assert.Equal(t, "106", attrs.AddressID)
	assert.Equal(t, "Praha", attrs.City)
}

func TestCreateForOrderCancelledMeanwhileWithdrawsPacket(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "ES-R", models.OrderPaid, models.DeliveryPickup)
	f.carrier.onCreate = func() {
		require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", o.ID).Update("status", models.OrderCancelled).Error)
	}

	_, err := f.svc.CreateForOrder(context.Background(), o.ID)
	require.ErrorIs(t, err, shipments.ErrNotShippable)

	assert.Equal(t, []string{"44100ES-R"}, f.carrier.withdrawn)
	assert.Empty(t, f.events, "no shipped notification for a cancelled order")

	var fresh models.Order
	require.NoError(t, f.db.First(&fresh, o.ID).Error)
	assert.Equal(t, models.OrderCancelled, fresh.Status)

	var sh models.Shipment
	require.NoError(t, f.db.Where("order_id = ?", o.ID).First(&sh).Error)
	assert.Equal(t, models.PacketCancelled, sh.StatusCode)
	assert.True(t, sh.Final())
}

func TestLabelFaultIsCarrierError(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "ES-F", models.OrderShipped, models.DeliveryPickup)
	require.NoError(t, f.db.Create(&models.Shipment{OrderID: o.ID, PacketID: "L9", StatusCode: 2}).Error)
	f.carrier.labelErr = &packeta.Fault{Code: "PacketIdFault", Message: "unknown packet"}

	_, err := f.svc.Label(context.Background(), o.ID)
	require.ErrorIs(t, err, shipments.ErrCarrier)
	var fault *packeta.Fault
	assert.ErrorAs(t, err, &fault)
}

func TestCreateForUnpaidOrder(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "ES-3", models.OrderPending, models.DeliveryPickup)

	_, err := f.svc.CreateForOrder(context.Background(), o.ID)
	assert.ErrorIs(t, err, shipments.ErrNotShippable)
	assert.Empty(t, f.carrier.created)
}

func TestSyncTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	delivered := f.order(t, "ES-10", models.OrderShipped, models.DeliveryPickup)
	unchanged := f.order(t, "ES-11", models.OrderShipped, models.DeliveryPickup)
	broken := f.order(t, "ES-12", models.OrderShipped, models.DeliveryPickup)
	done := f.order(t, "ES-13", models.OrderDelivered, models.DeliveryPickup)
	for _, sh := range []models.Shipment{
		{OrderID: delivered.ID, PacketID: "A", StatusCode: 3},
		{OrderID: unchanged.ID, PacketID: "B", StatusCode: 3},
		{OrderID: broken.ID, PacketID: "C", StatusCode: 3},
		{OrderID: done.ID, PacketID: "D", StatusCode: models.PacketDelivered},
	} {
		sh := sh
		require.NoError(t, f.db.Create(&sh).Error)
	}
	f.carrier.statuses["A"] = models.PacketDelivered
	f.carrier.statuses["B"] = 3
	f.carrier.failing["C"] = true

	err := f.svc.SyncTracking(ctx)
	require.Error(t, err, "the failing packet is reported")
	assert.Contains(t, err.Error(), "C")

	var sh models.Shipment
	require.NoError(t, f.db.Where("packet_id = ?", "A").First(&sh).Error)
	assert.Equal(t, models.PacketDelivered, sh.StatusCode)
	assert.NotNil(t, sh.LastCheckedAt)

	var o models.Order
	require.NoError(t, f.db.First(&o, delivered.ID).Error)
	assert.Equal(t, models.OrderDelivered, o.Status)

	ev := <-f.events
	assert.Equal(t, "A", ev.PacketID)
	assert.Equal(t, models.OrderDelivered, ev.OrderStatus)
	assert.Empty(t, f.events, "unchanged shipments fire nothing")
}

func TestLabelIsCachedOnDisk(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "ES-20", models.OrderShipped, models.DeliveryPickup)
	require.NoError(t, f.db.Create(&models.Shipment{OrderID: o.ID, PacketID: "L1", StatusCode: 2}).Error)

	for i := 0; i < 2; i++ {
		pdf, err := f.svc.Label(context.Background(), o.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF L1"), pdf)
	}
	assert.Equal(t, 1, f.carrier.labels)

	var sh models.Shipment
	require.NoError(t, f.db.Where("packet_id = ?", "L1").First(&sh).Error)
	assert.Equal(t, "labels/L1.pdf", sh.LabelPath)
}
