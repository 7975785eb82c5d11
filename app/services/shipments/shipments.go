// Package shipments creates Packeta packets for paid orders, keeps their
// tracking status current and serves shipping labels.
package shipments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/packeta"
	"github.com/shashiranjanraj/eshop/pkg/storage"
	"github.com/shashiranjanraj/eshop/pkg/workerpool"
)

var (
	// ErrNotShippable means the order is not in a state a packet can be made for.
	ErrNotShippable = errors.New("shipments: order is not paid")
	// ErrCarrier wraps every failed Packeta call.
	ErrCarrier = errors.New("shipments: carrier request failed")
)

// Carrier is the subset of the Packeta client the service uses.
type Carrier interface {
	CreatePacket(ctx context.Context, attrs packeta.PacketAttributes) (*packeta.PacketResult, error)
	PacketStatus(ctx context.Context, packetID string) (*packeta.Status, error)
	PacketLabelPdf(ctx context.Context, packetID string) ([]byte, error)
	CancelPacket(ctx context.Context, packetID string) error
}

// Event is the payload of shipment.status_changed.
type Event struct {
	OrderID     uint   `json:"orderId"`
	Number      string `json:"number"`
	Email       string `json:"email"`
	PacketID    string `json:"packetId"`
	StatusCode  int    `json:"statusCode"`
	StatusText  string `json:"statusText"`
	OrderStatus string `json:"orderStatus"`
	// Created is set on the event fired when the packet is registered.
	Created bool `json:"created"`
}

// Options tune a Service.
type Options struct {
	// HomeDeliveryCarrier is the Packeta carrier id used as addressId for
	// home delivery.
	HomeDeliveryCarrier string
	// SyncConcurrency bounds parallel tracking queries.
	SyncConcurrency int
}

type Service struct {
	orders    *repositories.OrderRepository
	shipments *repositories.ShipmentRepository
	carrier   Carrier
	disk      storage.Disk
	bus       *event.Bus
	opts      Options
	now       func() time.Time
}

func NewService(db *gorm.DB, carrier Carrier, disk storage.Disk, bus *event.Bus, opts Options) *Service {
	if bus == nil {
		bus = event.Default()
	}
	if opts.SyncConcurrency <= 0 {
		opts.SyncConcurrency = 4
	}
	return &Service{
		orders:    repositories.NewOrderRepository(db),
		shipments: repositories.NewShipmentRepository(db),
		carrier:   carrier,
		disk:      disk,
		bus:       bus,
		opts:      opts,
		now:       time.Now,
	}
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

func (s *Service) attributes(o *models.Order) packeta.PacketAttributes {
	first, last := splitName(o.Name)
	attrs := packeta.PacketAttributes{
		Number:   o.Number,
		Name:     first,
		Surname:  last,
		Email:    o.Email,
		Phone:    o.Phone,
		COD:      0,
		Value:    o.TotalCZK,
		Currency: "CZK",
		Weight:   o.WeightKg,
	}
	if o.DeliveryMethod == models.DeliveryPickup {
		attrs.AddressID = o.PickupPointID
	} else {
		attrs.AddressID = s.opts.HomeDeliveryCarrier
		attrs.Street = o.Street
		attrs.City = o.City
		attrs.Zip = o.Zip
	}
	return attrs
}

// CreateForOrder registers a packet for a paid order and marks it shipped.
// Calling it again returns the existing shipment.
func (s *Service) CreateForOrder(ctx context.Context, orderID uint) (*models.Shipment, error) {
	log := logger.WithCtx(ctx)

	order, err := s.orders.ByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Shipment != nil {
		return order.Shipment, nil
	}
	if order.Status != models.OrderPaid {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotShippable, order.Number, order.Status)
	}

	res, err := s.carrier.CreatePacket(ctx, s.attributes(order))
	if err != nil {
		return nil, fmt.Errorf("%w: create packet for %s: %w", ErrCarrier, order.Number, err)
	}

	sh := &models.Shipment{
		OrderID:    order.ID,
		PacketID:   res.ID,
		Barcode:    res.Barcode,
		StatusCode: 1,
		StatusText: "created",
	}
	if err := s.shipments.Create(ctx, sh); err != nil {
		return nil, err
	}

	err = s.orders.Transition(ctx, order.ID, models.OrderShipped, []string{models.OrderPaid}, nil)
	if errors.Is(err, repositories.ErrStaleStatus) {
		// Cancelled while the packet was being registered; the cancel saw no
		// shipment, so the packet is withdrawn here.
		s.withdraw(ctx, order, sh)
		return nil, fmt.Errorf("%w: %s left paid state while its packet was created", ErrNotShippable, order.Number)
	}
	if err != nil {
		return nil, err
	}

	log.Info("shipments: packet created", "order", order.Number, "packet_id", sh.PacketID, "barcode", sh.Barcode)
	s.bus.Fire(ctx, event.ShipmentStatusChanged, Event{
		OrderID: order.ID, Number: order.Number, Email: order.Email,
		PacketID: sh.PacketID, StatusCode: sh.StatusCode, StatusText: sh.StatusText,
		OrderStatus: models.OrderShipped, Created: true,
	})
	return sh, nil
}

func (s *Service) withdraw(ctx context.Context, order *models.Order, sh *models.Shipment) {
	log := logger.WithCtx(ctx)
	if err := s.carrier.CancelPacket(ctx, sh.PacketID); err != nil {
		log.Error("shipments: withdrawing packet of cancelled order failed", "order", order.Number, "packet_id", sh.PacketID, "error", err)
		return
	}
	fields := map[string]any{"status_code": models.PacketCancelled, "status_text": "cancelled"}
	if err := s.shipments.Update(ctx, sh.ID, fields); err != nil {
		log.Warn("shipments: recording withdrawn packet failed", "packet_id", sh.PacketID, "error", err)
	}
	log.Warn("shipments: packet withdrawn, order was cancelled meanwhile", "order", order.Number, "packet_id", sh.PacketID)
}

// SyncTracking polls every open shipment through a bounded pool and records
// status changes. Individual failures are logged and joined into the result.
func (s *Service) SyncTracking(ctx context.Context) error {
	log := logger.WithCtx(ctx)

	open, err := s.shipments.Open(ctx)
	if err != nil {
		return err
	}

	errs := workerpool.Each(ctx, s.opts.SyncConcurrency, open, s.syncOne)
	for _, err := range errs {
		log.Warn("shipments: tracking update failed", "error", err)
	}
	log.Info("shipments: tracking synced", "shipments", len(open), "failed", len(errs))
	return errors.Join(errs...)
}

func (s *Service) syncOne(ctx context.Context, sh models.Shipment) error {
	st, err := s.carrier.PacketStatus(ctx, sh.PacketID)
	if err != nil {
		return fmt.Errorf("%w: status of %s: %w", ErrCarrier, sh.PacketID, err)
	}

	now := s.now()
	fields := map[string]any{"last_checked_at": &now}
	changed := st.StatusCode != sh.StatusCode
	if changed {
		fields["status_code"] = st.StatusCode
		fields["status_text"] = st.StatusText
	}
	if err := s.shipments.Update(ctx, sh.ID, fields); err != nil {
		return err
	}
	if !changed {
		return nil
	}

	order, err := s.orders.ByID(ctx, sh.OrderID)
	if err != nil {
		return err
	}
	if st.StatusCode == models.PacketDelivered {
		if err := s.orders.Transition(ctx, order.ID, models.OrderDelivered, []string{models.OrderShipped}, nil); err == nil {
			order.Status = models.OrderDelivered
		} else if !errors.Is(err, repositories.ErrStaleStatus) {
			return err
		}
	}

	logger.WithCtx(ctx).Info("shipments: status changed", "packet_id", sh.PacketID, "from", sh.StatusCode, "to", st.StatusCode, "text", st.StatusText)
	s.bus.Fire(ctx, event.ShipmentStatusChanged, Event{
		OrderID: order.ID, Number: order.Number, Email: order.Email,
		PacketID: sh.PacketID, StatusCode: st.StatusCode, StatusText: st.StatusText,
		OrderStatus: order.Status,
	})
	return nil
}

func labelPath(packetID string) string { return "labels/" + packetID + ".pdf" }

// Label returns the label PDF for an order, fetching it from the carrier
// the first time and serving the stored copy afterwards.
func (s *Service) Label(ctx context.Context, orderID uint) ([]byte, error) {
	sh, err := s.shipments.ByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	path := labelPath(sh.PacketID)
	pdf, err := s.disk.Get(ctx, path)
	if err == nil {
		return pdf, nil
	}
	if !errors.Is(err, storage.ErrNotExist) {
		logger.WithCtx(ctx).Warn("shipments: reading cached label failed", "path", path, "error", err)
	}

	pdf, err = s.carrier.PacketLabelPdf(ctx, sh.PacketID)
	if err != nil {
		return nil, fmt.Errorf("%w: label for %s: %w", ErrCarrier, sh.PacketID, err)
	}

	if err := s.disk.Put(ctx, path, pdf); err != nil {
		logger.WithCtx(ctx).Warn("shipments: storing label failed", "path", path, "error", err)
	} else if sh.LabelPath != path {
		if err := s.shipments.Update(ctx, sh.ID, map[string]any{"label_path": path}); err != nil {
			logger.WithCtx(ctx).Warn("shipments: recording label path failed", "error", err)
		}
	}
	return pdf, nil
}

// OrderID resolves a public order number.
func (s *Service) OrderID(ctx context.Context, number string) (uint, error) {
	o, err := s.orders.ByNumber(ctx, number)
	if err != nil {
		return 0, err
	}
	return o.ID, nil
}
