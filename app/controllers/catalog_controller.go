package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/shipping"
	"github.com/shashiranjanraj/eshop/pkg/bind"
	"github.com/shashiranjanraj/eshop/pkg/response"
)

// CatalogController serves the storefront's pre-checkout lookups.
type CatalogController struct {
	calc     *shipping.Calculator
	adjuster *inventory.Adjuster
}

func NewCatalogController(calc *shipping.Calculator, adjuster *inventory.Adjuster) *CatalogController {
	return &CatalogController{calc: calc, adjuster: adjuster}
}

type quoteRequest struct {
	DeliveryMethod string              `json:"deliveryMethod" validate:"required,in=pickup|home_delivery"`
	Items          []shipping.CartItem `json:"items"          validate:"required,min=1,dive"`
}

type quoteResponse struct {
	WeightKg float64        `json:"weightKg"`
	Quote    shipping.Quote `json:"quote"`
}

// ShippingQuote handles POST /api/shipping/quote.
func (c *CatalogController) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	var in quoteRequest
	if !bind.JSON(w, r, &in) {
		return
	}
	q, weight := c.calc.Quote(r.Context(), in.Items, shipping.Method(in.DeliveryMethod))
	response.Success(w, quoteResponse{WeightKg: weight, Quote: q})
}

type availabilityRequest struct {
	Items []inventory.Item `json:"items" validate:"required,min=1,dive"`
}

// Availability handles POST /api/inventory/availability.
func (c *CatalogController) Availability(w http.ResponseWriter, r *http.Request) {
	var in availabilityRequest
	if !bind.JSON(w, r, &in) {
		return
	}
	response.Success(w, c.adjuster.CheckAvailability(r.Context(), in.Items))
}
