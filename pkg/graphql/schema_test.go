package graphql_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/shipping"
	"github.com/shashiranjanraj/eshop/pkg/audit"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/graphql"
	"github.com/shashiranjanraj/eshop/pkg/testkit"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	db := testkit.NewDB(t)
	w := 1.5
	require.NoError(t, db.Create(&models.Product{ID: "p1", Name: "Tričko", PriceCZK: 590, WeightKg: &w, Active: true}).Error)
	require.NoError(t, db.Create(&models.SKU{ProductID: "p1", Size: "M", Stock: 1}).Error)

	calc := shipping.NewCalculator(repositories.NewProductRepository(db))
	adj := inventory.New(repositories.NewStockRepository(db), audit.Nop{}, event.NewBus(), 0)
	schema, err := graphql.NewSchema(calc, adj)
	require.NoError(t, err)
	return graphql.Handler(schema)
}

func post(t *testing.T, h http.Handler, query string, vars map[string]any) map[string]any {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"query": query, "variables": vars})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data   map[string]any `json:"data"`
		Errors []any          `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Empty(t, out.Errors)
	return out.Data
}

func TestShippingQuoteQuery(t *testing.T) {
	data := post(t, newHandler(t), `query($items: [CartItemInput!]!) {
		shippingQuote(method: HOME_DELIVERY, items: $items) { weightKg totalCZK baseCZK }
	}`, map[string]any{"items": []any{map[string]any{"productId": "p1", "quantity": 2}}})

	q := data["shippingQuote"].(map[string]any)
	assert.Equal(t, 3.0, q["weightKg"])
	assert.Equal(t, 107.0, q["totalCZK"])
	assert.Equal(t, 89.0, q["baseCZK"])
}

func TestAvailabilityQuery(t *testing.T) {
	data := post(t, newHandler(t), `{
		availability(items: [{productId: "p1", size: "M", quantity: 2}]) { available errors }
	}`, nil)

	a := data["availability"].(map[string]any)
	assert.Equal(t, false, a["available"])
	assert.Len(t, a["errors"], 1)
}

func TestHandlerRejectsGet(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
