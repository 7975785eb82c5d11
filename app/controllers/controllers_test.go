package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/controllers"
	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/routes"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/orders"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/app/services/shipping"
	"github.com/shashiranjanraj/eshop/pkg/audit"
	"github.com/shashiranjanraj/eshop/pkg/auth"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/packeta"
	"github.com/shashiranjanraj/eshop/pkg/payment"
	"github.com/shashiranjanraj/eshop/pkg/router"
	"github.com/shashiranjanraj/eshop/pkg/storage"
	"github.com/shashiranjanraj/eshop/pkg/testkit"
)

type gateway struct {
	mu   sync.Mutex
	fail bool
	paid map[string]bool
}

func (g *gateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, errors.New("stripe down")
	}
	return &payment.Session{ID: "cs_" + req.OrderNumber, URL: "https://pay.test/" + req.OrderNumber}, nil
}

func (g *gateway) GetSession(_ context.Context, id string) (*payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := "unpaid"
	if g.paid[id] {
		st = "paid"
	}
	return &payment.Session{ID: id, PaymentStatus: st, ClientReferenceID: id[len("cs_"):]}, nil
}

type carrier struct{}

func (carrier) CreatePacket(_ context.Context, a packeta.PacketAttributes) (*packeta.PacketResult, error) {
	return &packeta.PacketResult{ID: "9" + a.Number, Barcode: "Z9" + a.Number}, nil
}

func (carrier) PacketStatus(context.Context, string) (*packeta.Status, error) {
	return &packeta.Status{StatusCode: 2, StatusText: "accepted"}, nil
}

func (carrier) PacketLabelPdf(_ context.Context, id string) ([]byte, error) {
	return []byte("%PDF-1.4 " + id), nil
}

func (carrier) CancelPacket(context.Context, string) error { return nil }

type fixture struct {
	db      *gorm.DB
	gw      *gateway
	handler http.Handler
	admin   string
	staff   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testkit.NewDB(t)

	w := 1.5
	require.NoError(t, db.Create(&models.Product{ID: "p1", Name: "Tričko", PriceCZK: 590, WeightKg: &w, Active: true}).Error)
	require.NoError(t, db.Create(&models.Product{ID: "old", Name: "Mikina", PriceCZK: 900, Active: false}).Error)
	require.NoError(t, db.Create(&models.SKU{ProductID: "p1", Size: "M", Stock: 3}).Error)
	require.NoError(t, db.Create(&models.SKU{ProductID: "old", Size: "M", Stock: 3}).Error)

	hash, err := auth.HashPassword("tajneheslo")
	require.NoError(t, err)
	admin := &models.AdminUser{Email: "admin@eshop.cz", PasswordHash: hash, Role: models.RoleAdmin}
	staff := &models.AdminUser{Email: "sklad@eshop.cz", PasswordHash: hash, Role: models.RoleStaff}
	require.NoError(t, db.Create(admin).Error)
	require.NoError(t, db.Create(staff).Error)

	bus := event.NewBus()
	adj := inventory.New(repositories.NewStockRepository(db), audit.NewMemory(), bus, 0)
	calc := shipping.NewCalculator(repositories.NewProductRepository(db))
	gw := &gateway{paid: map[string]bool{}}
	ord := orders.NewService(db, adj, calc, gw, carrier{}, bus)
	ship := shipments.NewService(db, carrier{}, storage.NewLocalDisk(t.TempDir(), ""), bus, shipments.Options{HomeDeliveryCarrier: "106"})

	r := router.New()
	routes.Register(r, routes.Handlers{
		Catalog:  controllers.NewCatalogController(calc, adj),
		Checkout: controllers.NewCheckoutController(ord),
		Admin:    controllers.NewAdminController(repositories.NewAdminRepository(db), ord, ship),
	})

	adminTok, _, err := auth.IssueToken(admin.ID, admin.Email, admin.Role)
	require.NoError(t, err)
	staffTok, _, err := auth.IssueToken(staff.ID, staff.Email, staff.Role)
	require.NoError(t, err)

	return &fixture{db: db, gw: gw, handler: r, admin: adminTok, staff: staffTok}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	var sku models.SKU
	require.NoError(t, f.db.Where("product_id = ? AND size = ?", "p1", "M").First(&sku).Error)
	return sku.Stock
}

func checkoutBody(qty int, product string) map[string]any {
	return map[string]any{
		"email":          "jana@example.cz",
		"name":           "Jana Nováková",
		"deliveryMethod": "pickup",
		"pickupPointId":  "4321",
		"items":          []map[string]any{{"productId": product, "size": "M", "quantity": qty}},
	}
}

func (f *fixture) checkout(t *testing.T, qty int) orders.CheckoutResult {
	t.Helper()
	var res orders.CheckoutResult
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout", "", checkoutBody(qty, "p1")), http.StatusCreated, &res)
	return res
}

func TestShippingQuote(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/shipping/quote", "", map[string]any{
		"deliveryMethod": "home_delivery",
		"items":          []map[string]any{{"productId": "p1", "quantity": 2}},
	})

	var out struct {
		WeightKg float64        `json:"weightKg"`
		Quote    shipping.Quote `json:"quote"`
	}
	testkit.DecodeEnvelope(t, rec, http.StatusOK, &out)
	assert.Equal(t, 3.0, out.WeightKg)
	assert.Equal(t, 107, out.Quote.TotalCZK)
}

func TestShippingQuoteRejectsUnknownMethod(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/shipping/quote", "", map[string]any{
		"deliveryMethod": "drone",
		"items":          []map[string]any{{"productId": "p1", "quantity": 1}},
	})

	env := testkit.DecodeEnvelope(t, rec, http.StatusUnprocessableEntity, nil)
	assert.Contains(t, string(env.Errors), "deliveryMethod")
}

func TestAvailabilityReportsShortage(t *testing.T) {
	f := newFixture(t)
	var out inventory.Availability
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/inventory/availability", "", map[string]any{
		"items": []map[string]any{{"productId": "p1", "size": "M", "quantity": 5}},
	}), http.StatusOK, &out)

	assert.False(t, out.Available)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "skladem 3")
}

func TestCheckoutThenConfirm(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t, 1)
	assert.NotEmpty(t, res.OrderNumber)
	assert.Equal(t, "cs_"+res.OrderNumber, res.SessionID)
	assert.Equal(t, 590+res.Shipping.TotalCZK, res.TotalCZK)

	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout/confirm", "", map[string]any{"sessionId": res.SessionID}), http.StatusConflict, nil)
	assert.Equal(t, 3, f.stock(t))

	f.gw.paid[res.SessionID] = true
	var order models.Order
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout/confirm", "", map[string]any{"sessionId": res.SessionID}), http.StatusOK, &order)
	assert.Equal(t, models.OrderPaid, order.Status)
	assert.Equal(t, 2, f.stock(t))

	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout/confirm", "", map[string]any{"sessionId": res.SessionID}), http.StatusOK, &order)
	assert.Equal(t, 2, f.stock(t), "confirm is idempotent")
}

func TestCheckoutErrors(t *testing.T) {
	f := newFixture(t)

	env := testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout", "", checkoutBody(9, "p1")), http.StatusConflict, nil)
	assert.Contains(t, string(env.Errors), "Nedostatek")

	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout", "", checkoutBody(1, "old")), http.StatusUnprocessableEntity, nil)

	body := checkoutBody(1, "p1")
	delete(body, "pickupPointId")
	env = testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout", "", body), http.StatusUnprocessableEntity, nil)
	assert.Contains(t, string(env.Errors), "pickupPointId")

	f.gw.fail = true
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout", "", checkoutBody(1, "p1")), http.StatusBadGateway, nil)
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t)

	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/admin/login", "", map[string]any{
		"email": "ADMIN@eshop.cz", "password": "tajneheslo",
	}), http.StatusOK, &out)
	assert.Equal(t, models.RoleAdmin, out.Role)

	claims, err := auth.ParseToken(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin@eshop.cz", claims.Email)

	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/admin/login", "", map[string]any{
		"email": "admin@eshop.cz", "password": "spatne",
	}), http.StatusUnauthorized, nil)
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/admin/login", "", map[string]any{
		"email": "nikdo@eshop.cz", "password": "tajneheslo",
	}), http.StatusUnauthorized, nil)
}

func TestAdminCancelAndShow(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t, 1)
	f.gw.paid[res.SessionID] = true
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout/confirm", "", map[string]any{"sessionId": res.SessionID}), http.StatusOK, nil)
	require.Equal(t, 2, f.stock(t))

	path := "/api/admin/orders/" + res.OrderNumber
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, path+"/cancel", f.staff, nil), http.StatusForbidden, nil)

	var cancelled orders.CancelResult
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, path+"/cancel", f.admin, nil), http.StatusOK, &cancelled)
	assert.Equal(t, models.OrderCancelled, cancelled.Order.Status)
	assert.Equal(t, 3, f.stock(t))

	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, path+"/cancel", f.admin, nil), http.StatusConflict, nil)

	var shown models.Order
	testkit.DecodeEnvelope(t, f.do(t, http.MethodGet, path, f.staff, nil), http.StatusOK, &shown)
	assert.Equal(t, models.OrderCancelled, shown.Status)

	testkit.DecodeEnvelope(t, f.do(t, http.MethodGet, "/api/admin/orders/ES-NOPE", f.staff, nil), http.StatusNotFound, nil)
}

func TestAdminRequiresToken(t *testing.T) {
	f := newFixture(t)
	testkit.DecodeEnvelope(t, f.do(t, http.MethodGet, "/api/admin/orders/ES-1", "", nil), http.StatusUnauthorized, nil)
	testkit.DecodeEnvelope(t, f.do(t, http.MethodGet, "/api/admin/orders/ES-1", "garbage", nil), http.StatusUnauthorized, nil)
}

func TestAdminShipmentAndLabel(t *testing.T) {
	f := newFixture(t)
	res := f.checkout(t, 1)
	path := "/api/admin/orders/" + res.OrderNumber

	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, path+"/shipment", f.staff, nil), http.StatusConflict, nil)

	f.gw.paid[res.SessionID] = true
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/checkout/confirm", "", map[string]any{"sessionId": res.SessionID}), http.StatusOK, nil)

	var sh models.Shipment
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, path+"/shipment", f.staff, nil), http.StatusCreated, &sh)
	assert.Equal(t, "9"+res.OrderNumber, sh.PacketID)

	rec := f.do(t, http.MethodGet, path+"/label", f.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 9"+res.OrderNumber, rec.Body.String())

	var synced map[string]bool
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/admin/tracking/sync", f.staff, nil), http.StatusOK, &synced)
	assert.True(t, synced["synced"])
}

func TestAdminRollback(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"ref": "inventura-7", "items": []map[string]any{{"productId": "p1", "size": "M", "quantity": 2}}}

	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/admin/inventory/rollback", f.staff, body), http.StatusForbidden, nil)

	var out inventory.Result
	testkit.DecodeEnvelope(t, f.do(t, http.MethodPost, "/api/admin/inventory/rollback", f.admin, body), http.StatusOK, &out)
	assert.True(t, out.Success)
	assert.Equal(t, 5, f.stock(t))
}
