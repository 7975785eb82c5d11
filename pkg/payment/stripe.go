// Package payment creates and verifies Stripe Checkout sessions through
// stripe-go.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/shashiranjanraj/eshop/config"
	shophttp "github.com/shashiranjanraj/eshop/pkg/http"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
)

// ErrNotConfigured is returned when STRIPE_SECRET_KEY is empty.
var ErrNotConfigured = errors.New("payment: STRIPE_SECRET_KEY is not configured")

// APIError is a Stripe error object.
type APIError struct {
	Status  int
	Type    string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment: stripe %d %s: %s", e.Status, e.Type, e.Message)
}

// LineItem is one checkout line; UnitAmountCZK is in whole crowns.
type LineItem struct {
	Name          string
	UnitAmountCZK int
	Quantity      int
}

// CheckoutRequest describes a payment-mode session.
type CheckoutRequest struct {
	OrderNumber string
	Email       string
	Items       []LineItem
}

// Session is the subset of a Checkout Session the shop uses.
type Session struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	ClientReferenceID string `json:"client_reference_id"`
	AmountTotal       int64  `json:"amount_total"`
}

// Paid reports whether the customer completed payment.
func (s *Session) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// Gateway is what the order service needs from a payment provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}

// Stripe implements Gateway.
type Stripe struct {
	APIURL     string
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	Attempts   int
}

// FromConfig builds a Stripe gateway from STRIPE_* and CHECKOUT_* settings.
func FromConfig() *Stripe {
	return &Stripe{
		APIURL:     config.StripeAPIURL(),
		SecretKey:  config.StripeSecretKey(),
		Currency:   config.StripeCurrency(),
		SuccessURL: config.CheckoutSuccessURL(),
		CancelURL:  config.CheckoutCancelURL(),
		Attempts:   3,
	}
}

// sessions builds a session client over the shared outgoing HTTP client, so
// test transports installed on it see Stripe traffic too.
func (s *Stripe) sessions(ctx context.Context) session.Client {
	retries := int64(s.Attempts - 1)
	if retries < 0 {
		retries = 0
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        shophttp.DefaultClient,
		MaxNetworkRetries: stripe.Int64(retries),
		LeveledLogger:     leveled{ctx: ctx},
		EnableTelemetry:   stripe.Bool(false),
	}
	if s.APIURL != "" {
		cfg.URL = stripe.String(s.APIURL)
	}
	return session.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, cfg), Key: s.SecretKey}
}

// CreateCheckout opens a session. The order number doubles as the
// idempotency key so a retried POST never creates a second session.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error) {
	if s.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.SuccessURL),
		CancelURL:         stripe.String(s.CancelURL),
		ClientReferenceID: stripe.String(req.OrderNumber),
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.OrderNumber)
	params.AddMetadata("order_number", req.OrderNumber)
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(it.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.Currency),
				UnitAmount: stripe.Int64(int64(it.UnitAmountCZK) * 100),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
		})
	}

	cs, err := s.sessions(ctx).New(params)
	return record(ctx, "create_session", cs, err)
}

// GetSession retrieves a session to verify its payment status server-side.
func (s *Stripe) GetSession(ctx context.Context, id string) (*Session, error) {
	if s.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := s.sessions(ctx).Get(id, params)
	return record(ctx, "get_session", cs, err)
}

func record(ctx context.Context, op string, cs *stripe.CheckoutSession, err error) (*Session, error) {
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			metrics.PaymentRequests.WithLabelValues(op, "fault").Inc()
			logger.WithCtx(ctx).Warn("payment: stripe rejected request",
				"op", op, "status", se.HTTPStatusCode, "type", se.Type, "code", se.Code, "message", se.Msg)
			return nil, &APIError{Status: se.HTTPStatusCode, Type: string(se.Type), Code: string(se.Code), Message: se.Msg}
		}
		metrics.PaymentRequests.WithLabelValues(op, "error").Inc()
		logger.WithCtx(ctx).Error("payment: request failed", "op", op, "error", err)
		return nil, fmt.Errorf("payment: %s: %w", op, err)
	}

	metrics.PaymentRequests.WithLabelValues(op, "ok").Inc()
	return &Session{
		ID:                cs.ID,
		URL:               cs.URL,
		Status:            string(cs.Status),
		PaymentStatus:     string(cs.PaymentStatus),
		ClientReferenceID: cs.ClientReferenceID,
		AmountTotal:       cs.AmountTotal,
	}, nil
}

// leveled routes stripe-go's own logging into the request logger.
type leveled struct{ ctx context.Context }

func (l leveled) Debugf(format string, v ...interface{}) {
	logger.WithCtx(l.ctx).Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l leveled) Infof(format string, v ...interface{}) {
	logger.WithCtx(l.ctx).Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l leveled) Warnf(format string, v ...interface{}) {
	logger.WithCtx(l.ctx).Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l leveled) Errorf(format string, v ...interface{}) {
	logger.WithCtx(l.ctx).Error(fmt.Sprintf(format, v...), "component", "stripe")
}
