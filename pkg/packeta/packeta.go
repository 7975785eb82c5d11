// Package packeta is a client for the Packeta (Zásilkovna) XML REST API.
//
//	c := packeta.FromConfig()
//	res, err := c.CreatePacket(ctx, packeta.PacketAttributes{Number: "ES-1a2b", AddressID: "4321", ...})
//
// Transport failures and transient statuses are retried per Config. API
// faults are returned as *Fault and never retried.
package packeta

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/eshop/config"
	shophttp "github.com/shashiranjanraj/eshop/pkg/http"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
	"github.com/shashiranjanraj/eshop/pkg/retry"
)

// ErrNotConfigured is returned when no API password is set.
var ErrNotConfigured = errors.New("packeta: PACKETA_API_PASSWORD is not configured")

// Fault is an API-level rejection (<status>fault</status>).
type Fault struct {
	Code    string
	Message string
	Detail  string
}

func (f *Fault) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("packeta: %s: %s (%s)", f.Code, f.Message, f.Detail)
	}
	return fmt.Sprintf("packeta: %s: %s", f.Code, f.Message)
}

// Config holds the endpoint, credentials and retry policy.
type Config struct {
	URL      string
	Password string
	Eshop    string
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// Client talks to one Packeta account.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Client{cfg: cfg}
}

// FromConfig builds a client from PACKETA_* settings.
func FromConfig() *Client {
	return New(Config{
		URL:      config.PacketaAPIURL(),
		Password: config.PacketaAPIPassword(),
		Eshop:    config.PacketaEshop(),
		Attempts: config.PacketaRetryAttempts(),
		Timeout:  config.PacketaTimeout(),
		Backoff:  config.PacketaRetryBackoff(),
	})
}

// Eshop is the sender label configured for this account.
func (c *Client) Eshop() string { return c.cfg.Eshop }

// PacketAttributes describes a new packet. AddressID is the pickup point id
// or, for home delivery, the carrier id.
type PacketAttributes struct {
	XMLName     xml.Name `xml:"packetAttributes"`
	Number      string   `xml:"number"`
	Name        string   `xml:"name"`
	Surname     string   `xml:"surname"`
	Email       string   `xml:"email,omitempty"`
	Phone       string   `xml:"phone,omitempty"`
	AddressID   string   `xml:"addressId"`
	COD         int      `xml:"cod"`
	Value       int      `xml:"value"`
	Currency    string   `xml:"currency,omitempty"`
	Weight      float64  `xml:"weight"`
	Eshop       string   `xml:"eshop,omitempty"`
	Street      string   `xml:"street,omitempty"`
	HouseNumber string   `xml:"houseNumber,omitempty"`
	City        string   `xml:"city,omitempty"`
	Zip         string   `xml:"zip,omitempty"`
}

// PacketResult identifies a created packet.
type PacketResult struct {
	ID          string `xml:"id"`
	Barcode     string `xml:"barcode"`
	BarcodeText string `xml:"barcodeText"`
}

// Status is the current tracking state of a packet.
type Status struct {
	DateTime   string `xml:"dateTime"`
	StatusCode int    `xml:"statusCode"`
	CodeText   string `xml:"codeText"`
	StatusText string `xml:"statusText"`
}

type createPacketRequest struct {
	XMLName     xml.Name `xml:"createPacket"`
	APIPassword string   `xml:"apiPassword"`
	Attributes  PacketAttributes
}

type packetRequest struct {
	XMLName     xml.Name
	APIPassword string `xml:"apiPassword"`
	PacketID    string `xml:"packetId"`
	Format      string `xml:"format,omitempty"`
	Offset      *int   `xml:"offset,omitempty"`
}

type envelope struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:"status"`
	Fault   string   `xml:"fault"`
	String  string   `xml:"string"`
	Detail  struct {
		Inner string `xml:",innerxml"`
	} `xml:"detail"`
	Result struct {
		Inner []byte `xml:",innerxml"`
		Text  string `xml:",chardata"`
	} `xml:"result"`
}

// CreatePacket registers a packet and returns its id and barcode.
func (c *Client) CreatePacket(ctx context.Context, attrs PacketAttributes) (*PacketResult, error) {
	if attrs.Eshop == "" {
		attrs.Eshop = c.cfg.Eshop
	}
	env, err := c.call(ctx, "createPacket", createPacketRequest{APIPassword: c.cfg.Password, Attributes: attrs})
	if err != nil {
		return nil, err
	}

	var res PacketResult
	if err := decodeResult(env, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PacketStatus returns the tracking status of packetID.
func (c *Client) PacketStatus(ctx context.Context, packetID string) (*Status, error) {
	env, err := c.call(ctx, "packetStatus", c.packetRequest("packetStatus", packetID))
	if err != nil {
		return nil, err
	}

	var st Status
	if err := decodeResult(env, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// CancelPacket withdraws a packet that has not been handed over yet.
func (c *Client) CancelPacket(ctx context.Context, packetID string) error {
	_, err := c.call(ctx, "cancelPacket", c.packetRequest("cancelPacket", packetID))
	return err
}

// PacketLabelPdf returns the A6 label PDF for packetID.
func (c *Client) PacketLabelPdf(ctx context.Context, packetID string) ([]byte, error) {
	req := c.packetRequest("packetLabelPdf", packetID)
	req.Format = "A6 on A6"
	offset := 0
	req.Offset = &offset

	env, err := c.call(ctx, "packetLabelPdf", req)
	if err != nil {
		return nil, err
	}

	pdf, err := base64.StdEncoding.DecodeString(env.Result.Text)
	if err != nil {
		return nil, fmt.Errorf("packeta: decode label: %w", err)
	}
	return pdf, nil
}

func (c *Client) packetRequest(op, packetID string) packetRequest {
	return packetRequest{XMLName: xml.Name{Local: op}, APIPassword: c.cfg.Password, PacketID: packetID}
}

// call posts one request under the retry policy and unwraps the envelope.
func (c *Client) call(ctx context.Context, op string, body any) (*envelope, error) {
	if c.cfg.Password == "" {
		return nil, ErrNotConfigured
	}
	log := logger.WithCtx(ctx)

	raw, err := xml.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("packeta: %s: marshal: %w", op, err)
	}

	resp, err := shophttp.Post(c.cfg.URL).
		Header("Accept", "application/xml").
		XML(raw).
		Policy(retry.Policy{
			MaxAttempts:    c.cfg.Attempts,
			InitialBackoff: c.cfg.Backoff,
			MaxBackoff:     8 * c.cfg.Backoff,
			Timeout:        c.cfg.Timeout,
			Retryable:      retry.RetryableStatus,
		}).
		WithContext(ctx).
		Send()
	if err != nil {
		metrics.CarrierRequests.WithLabelValues("packeta."+op, "error").Inc()
		log.Error("packeta: request failed", "op", op, "error", err)
		return nil, fmt.Errorf("packeta: %s: %w", op, err)
	}
	if !resp.OK() {
		metrics.CarrierRequests.WithLabelValues("packeta."+op, "error").Inc()
		log.Error("packeta: unexpected status", "op", op, "status", resp.StatusCode)
		return nil, fmt.Errorf("packeta: %s: %w", op, &retry.StatusError{Status: resp.StatusCode})
	}

	var env envelope
	if err := xml.Unmarshal(resp.Raw, &env); err != nil {
		metrics.CarrierRequests.WithLabelValues("packeta."+op, "error").Inc()
		return nil, fmt.Errorf("packeta: %s: decode response: %w", op, err)
	}

	if env.Status != "ok" {
		metrics.CarrierRequests.WithLabelValues("packeta."+op, "fault").Inc()
		fault := &Fault{Code: env.Fault, Message: env.String, Detail: env.Detail.Inner}
		log.Warn("packeta: api fault", "op", op, "fault", fault.Code, "message", fault.Message)
		return nil, fault
	}

	metrics.CarrierRequests.WithLabelValues("packeta."+op, "ok").Inc()
	return &env, nil
}

func decodeResult(env *envelope, dest any) error {
	wrapped := append([]byte("<result>"), env.Result.Inner...)
	wrapped = append(wrapped, "</result>"...)
	if err := xml.Unmarshal(wrapped, dest); err != nil {
		return fmt.Errorf("packeta: decode result: %w", err)
	}
	return nil
}
