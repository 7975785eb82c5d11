// Package orders runs checkout, payment confirmation and cancellation.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/shipping"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/payment"
)

// Address is the home-delivery destination.
type Address struct {
	Street string `json:"street" validate:"required,max=255"`
	City   string `json:"city"   validate:"required,max=128"`
	Zip    string `json:"zip"    validate:"required,regex=^[0-9]{3} ?[0-9]{2}$"`
}

// CheckoutInput is the POST /api/checkout body.
type CheckoutInput struct {
	Email          string           `json:"email"          validate:"required,email"`
	Name           string           `json:"name"           validate:"required,max=255"`
	Phone          string           `json:"phone"          validate:"nullable,max=32"`
	DeliveryMethod string           `json:"deliveryMethod" validate:"required,in=pickup|home_delivery"`
	PickupPointID  string           `json:"pickupPointId"  validate:"required_if=deliveryMethod|pickup"`
	Address        *Address         `json:"address"        validate:"required_if=deliveryMethod|home_delivery,dive"`
	Items          []inventory.Item `json:"items"          validate:"required,min=1,dive"`
}

// CheckoutResult is returned to the storefront, which redirects to
// CheckoutURL.
type CheckoutResult struct {
	OrderNumber string         `json:"orderNumber"`
	SessionID   string         `json:"sessionId"`
	CheckoutURL string         `json:"checkoutUrl"`
	Shipping    shipping.Quote `json:"shipping"`
	WeightKg    float64        `json:"weightKg"`
	ItemsCZK    int            `json:"itemsCZK"`
	TotalCZK    int            `json:"totalCZK"`
	Warnings    []string       `json:"warnings"`
}

// CancelResult lists what a cancellation put back on the shelf.
type CancelResult struct {
	Order        *models.Order           `json:"order"`
	UpdatedItems []inventory.UpdatedItem `json:"updatedItems"`
}

// Event is the payload of order.paid and order.cancelled.
type Event struct {
	OrderID uint   `json:"orderId"`
	Number  string `json:"number"`
	Status  string `json:"status"`
	Email   string `json:"email"`
}

// PacketCanceller withdraws a carrier packet.
type PacketCanceller interface {
	CancelPacket(ctx context.Context, packetID string) error
}

// Service wires the order flows together.
type Service struct {
	db        *gorm.DB
	orders    *repositories.OrderRepository
	products  *repositories.ProductRepository
	adjuster  *inventory.Adjuster
	calc      *shipping.Calculator
	gateway   payment.Gateway
	canceller PacketCanceller
	bus       *event.Bus
	now       func() time.Time
}

func NewService(db *gorm.DB, adjuster *inventory.Adjuster, calc *shipping.Calculator, gateway payment.Gateway, canceller PacketCanceller, bus *event.Bus) *Service {
	if bus == nil {
		bus = event.Default()
	}
	return &Service{
		db:        db,
		orders:    repositories.NewOrderRepository(db),
		products:  repositories.NewProductRepository(db),
		adjuster:  adjuster,
		calc:      calc,
		gateway:   gateway,
		canceller: canceller,
		bus:       bus,
		now:       time.Now,
	}
}

func newOrderNumber() string {
	return "ES-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Checkout validates stock, prices the cart, stores a pending order and
// opens a payment session for it.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	log := logger.WithCtx(ctx)

	av := s.adjuster.CheckAvailability(ctx, in.Items)
	if !av.Available {
		return nil, &UnavailableError{Errors: av.Errors}
	}

	cart := make([]shipping.CartItem, len(in.Items))
	ids := make([]string, 0, len(in.Items))
	for i, it := range in.Items {
		cart[i] = shipping.CartItem{ProductID: it.ProductID, Quantity: it.Quantity}
		ids = append(ids, it.ProductID)
	}
	method := shipping.Method(in.DeliveryMethod)
	quote, weight := s.calc.Quote(ctx, cart, method)

	catalogue, err := s.products.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Number:           newOrderNumber(),
		Status:           models.OrderPending,
		Email:            strings.ToLower(strings.TrimSpace(in.Email)),
		Name:             strings.TrimSpace(in.Name),
		Phone:            in.Phone,
		DeliveryMethod:   in.DeliveryMethod,
		ShippingBaseCZK:  quote.BaseCZK,
		ShippingFuelCZK:  quote.FuelCZK,
		ShippingTollCZK:  quote.TollCZK,
		ShippingExtraCZK: quote.ExtraCZK,
		ShippingCZK:      quote.TotalCZK,
		WeightKg:         weight,
	}
	if method == shipping.Pickup {
		order.PickupPointID = in.PickupPointID
	} else if in.Address != nil {
		order.Street, order.City, order.Zip = in.Address.Street, in.Address.City, in.Address.Zip
	}

	lines := make([]payment.LineItem, 0, len(in.Items)+1)
	for _, it := range in.Items {
		p, ok := catalogue[it.ProductID]
		if !ok || !p.Active {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
		}
		name := p.Name
		if it.Size != "" {
			name = fmt.Sprintf("%s (%s)", p.Name, it.Size)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: it.ProductID, Size: it.Size, Name: p.Name,
			Quantity: it.Quantity, UnitPriceCZK: p.PriceCZK,
		})
		order.ItemsCZK += p.PriceCZK * it.Quantity
		lines = append(lines, payment.LineItem{Name: name, UnitAmountCZK: p.PriceCZK, Quantity: it.Quantity})
	}
	order.TotalCZK = order.ItemsCZK + order.ShippingCZK
	lines = append(lines, payment.LineItem{Name: "Doprava (Zásilkovna)", UnitAmountCZK: quote.TotalCZK, Quantity: 1})

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		OrderNumber: order.Number,
		Email:       order.Email,
		Items:       lines,
	})
	if err != nil {
		log.Error("orders: payment session failed", "order", order.Number, "error", err)
		if terr := s.orders.Transition(ctx, order.ID, models.OrderPaymentFailed, []string{models.OrderPending}, nil); terr != nil {
			log.Error("orders: marking payment_failed failed", "order", order.Number, "error", terr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPayment, err)
	}

	if err := s.orders.Update(ctx, order.ID, map[string]any{"payment_session_id": sess.ID}); err != nil {
		return nil, err
	}

	log.Info("orders: checkout created", "order", order.Number, "total_czk", order.TotalCZK, "items", len(order.Items))
	return &CheckoutResult{
		OrderNumber: order.Number,
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		Shipping:    quote,
		WeightKg:    weight,
		ItemsCZK:    order.ItemsCZK,
		TotalCZK:    order.TotalCZK,
		Warnings:    av.Warnings,
	}, nil
}

// errStockRejected rolls the confirm transaction back.
var errStockRejected = errors.New("orders: stock rejected")

func stockTaken(status string) bool {
	switch status {
	case models.OrderPaid, models.OrderShipped, models.OrderDelivered:
		return true
	}
	return false
}

// Confirm verifies the session with the provider and, once, takes the
// order's items out of stock and marks it paid. The status claim and the
// decrement commit together, so concurrent confirmations cannot both
// decrement.
func (s *Service) Confirm(ctx context.Context, sessionID string) (*models.Order, error) {
	log := logger.WithCtx(ctx)

	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayment, err)
	}

	order, err := s.orders.BySessionID(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) && sess.ClientReferenceID != "" {
		order, err = s.orders.ByNumber(ctx, sess.ClientReferenceID)
	}
	if err != nil {
		return nil, err
	}

	if stockTaken(order.Status) {
		return order, nil
	}
	if !sess.Paid() {
		return nil, ErrNotPaid
	}
	switch order.Status {
	case models.OrderCancelled:
		return nil, ErrAlreadyCancelled
	case models.OrderStockConflict:
		return nil, &StockConflictError{Message: "Objednávku nelze vyřídit, zboží již není skladem"}
	}

	items := itemsOf(order)
	var (
		res   inventory.Result
		bound *inventory.Adjuster
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		err := repositories.NewOrderRepository(tx).Transition(ctx, order.ID, models.OrderPaid,
			[]string{models.OrderPending, models.OrderPaymentFailed},
			map[string]any{"paid_at": &now, "stock_taken": true, "payment_session_id": sessionID})
		if err != nil {
			return err
		}

		bound = s.adjuster.Bind(tx)
		res = bound.DecreaseInventory(ctx, items, order.Number)
		if !res.Success {
			return errStockRejected
		}
		return nil
	})

	switch {
	case errors.Is(err, repositories.ErrStaleStatus):
		// Someone else confirmed or cancelled in the meantime.
		fresh, ferr := s.orders.ByID(ctx, order.ID)
		if ferr != nil {
			return nil, ferr
		}
		if stockTaken(fresh.Status) {
			return fresh, nil
		}
		return nil, ErrConcurrentUpdate

	case errors.Is(err, errStockRejected):
		log.Warn("orders: paid order hit a stock conflict", "order", order.Number, "reason", res.Error)
		if terr := s.orders.Transition(ctx, order.ID, models.OrderStockConflict,
			[]string{models.OrderPending, models.OrderPaymentFailed}, nil); terr != nil {
			log.Error("orders: marking stock_conflict failed", "order", order.Number, "error", terr)
		}
		return nil, &StockConflictError{Message: res.Error}

	case err != nil:
		return nil, fmt.Errorf("orders: confirm %s: %w", order.Number, err)
	}
	bound.Flush(ctx)

	paid, err := s.orders.ByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	log.Info("orders: order paid", "order", paid.Number, "total_czk", paid.TotalCZK)
	s.bus.Fire(ctx, event.OrderPaid, Event{OrderID: paid.ID, Number: paid.Number, Status: paid.Status, Email: paid.Email})
	return paid, nil
}

// Cancel marks the order cancelled and restocks it if stock had been taken.
// A created packet is withdrawn from the carrier best effort.
func (s *Service) Cancel(ctx context.Context, number string) (*CancelResult, error) {
	log := logger.WithCtx(ctx)

	order, err := s.orders.ByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.OrderCancelled:
		return nil, ErrAlreadyCancelled
	case models.OrderDelivered:
		return nil, ErrNotCancellable
	}

	now := s.now()
	err = s.orders.Transition(ctx, order.ID, models.OrderCancelled, []string{order.Status},
		map[string]any{"cancelled_at": &now, "stock_taken": false})
	if errors.Is(err, repositories.ErrStaleStatus) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}

	updated := []inventory.UpdatedItem{}
	if order.StockTaken {
		res := s.adjuster.IncreaseInventory(ctx, itemsOf(order), order.Number)
		updated = res.UpdatedItems
	}

	if sh := order.Shipment; sh != nil && !sh.Final() && s.canceller != nil {
		if err := s.canceller.CancelPacket(ctx, sh.PacketID); err != nil {
			log.Warn("orders: cancelling packet failed", "order", order.Number, "packet_id", sh.PacketID, "error", err)
		}
	}

	cancelled, err := s.orders.ByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	log.Info("orders: order cancelled", "order", number, "restocked", len(updated), "previous_status", order.Status)
	s.bus.Fire(ctx, event.OrderCancelled, Event{OrderID: cancelled.ID, Number: cancelled.Number, Status: cancelled.Status, Email: cancelled.Email})
	return &CancelResult{Order: cancelled, UpdatedItems: updated}, nil
}

// Rollback restocks items that are not tied to a stored order.
func (s *Service) Rollback(ctx context.Context, items []inventory.Item, ref string) inventory.Result {
	if ref == "" {
		ref = "manual-rollback"
	}
	return s.adjuster.Rollback(ctx, items, ref)
}

// Order looks an order up by its public number.
func (s *Service) Order(ctx context.Context, number string) (*models.Order, error) {
	return s.orders.ByNumber(ctx, number)
}

func itemsOf(o *models.Order) []inventory.Item {
	items := make([]inventory.Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = inventory.Item{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity, Name: it.Name}
	}
	return items
}
