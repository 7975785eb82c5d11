package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/mail"
)

const trackingURL = "https://tracking.packeta.com/cs/?id="

// SendOrderStatusEmail tells the customer their order changed state.
type SendOrderStatusEmail struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`

	deps Deps
}

func (j *SendOrderStatusEmail) Handle(ctx context.Context) error {
	order, err := j.deps.Orders.ByID(ctx, j.OrderID)
	if err != nil {
		return fmt.Errorf("jobs: load order %d: %w", j.OrderID, err)
	}

	msg, ok := RenderStatusEmail(order, j.Status, j.deps.ShopName)
	if !ok {
		logger.WithCtx(ctx).Info("jobs: no e-mail for status", "order", order.Number, "status", j.Status)
		return nil
	}
	if err := j.deps.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("jobs: send %s e-mail for %s: %w", j.Status, order.Number, err)
	}
	logger.WithCtx(ctx).Info("jobs: order e-mail sent", "order", order.Number, "status", j.Status)
	return nil
}

// RenderStatusEmail builds the plain-text message for status. ok is false
// for statuses the customer is not told about.
func RenderStatusEmail(o *models.Order, status, shop string) (mail.Message, bool) {
	var subject, lead string
	switch status {
	case models.OrderPaid:
		subject = fmt.Sprintf("Objednávka %s byla zaplacena", o.Number)
		lead = "děkujeme za Váš nákup. Platbu jsme přijali a objednávku připravujeme k odeslání."
	case models.OrderShipped:
		subject = fmt.Sprintf("Objednávka %s byla odeslána", o.Number)
		lead = "Vaše objednávka je na cestě."
	case models.OrderDelivered:
		subject = fmt.Sprintf("Objednávka %s byla doručena", o.Number)
		lead = "Vaše objednávka byla doručena. Doufáme, že Vám bude dělat radost."
	case models.OrderCancelled:
		subject = fmt.Sprintf("Objednávka %s byla zrušena", o.Number)
		lead = "Vaše objednávka byla zrušena. Pokud jste již zaplatili, peníze Vám vrátíme do 14 dnů."
	default:
		return mail.Message{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dobrý den, %s,\n\n%s\n\n", o.Name, lead)
	fmt.Fprintf(&b, "Číslo objednávky: %s\n", o.Number)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "  %d× %s (%s)  %d Kč\n", it.Quantity, it.Name, it.Size, it.UnitPriceCZK*it.Quantity)
	}
	fmt.Fprintf(&b, "Doprava: %d Kč\n", o.ShippingCZK)
	fmt.Fprintf(&b, "Celkem: %d Kč\n", o.TotalCZK)

	if status == models.OrderShipped && o.Shipment != nil {
		id := o.Shipment.Barcode
		if id == "" {
			id = o.Shipment.PacketID
		}
		fmt.Fprintf(&b, "\nZásilku můžete sledovat zde: %s%s\n", trackingURL, id)
	}
	fmt.Fprintf(&b, "\nS pozdravem\n%s\n", shop)

	return mail.Message{To: []string{o.Email}, Subject: subject, Body: b.String()}, true
}
