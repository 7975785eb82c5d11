package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/eshop/app/services/orders"
	"github.com/shashiranjanraj/eshop/pkg/bind"
	"github.com/shashiranjanraj/eshop/pkg/response"
)

type CheckoutController struct {
	orders *orders.Service
}

func NewCheckoutController(svc *orders.Service) *CheckoutController {
	return &CheckoutController{orders: svc}
}

// Create handles POST /api/checkout.
func (c *CheckoutController) Create(w http.ResponseWriter, r *http.Request) {
	var in orders.CheckoutInput
	if !bind.JSON(w, r, &in) {
		return
	}

	res, err := c.orders.Checkout(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, res)
}

type confirmRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=255"`
}

// Confirm handles POST /api/checkout/confirm.
func (c *CheckoutController) Confirm(w http.ResponseWriter, r *http.Request) {
	var in confirmRequest
	if !bind.JSON(w, r, &in) {
		return
	}

	order, err := c.orders.Confirm(r.Context(), in.SessionID)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, order)
}
