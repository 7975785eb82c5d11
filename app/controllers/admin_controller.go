package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/orders"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/pkg/auth"
	"github.com/shashiranjanraj/eshop/pkg/bind"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/response"
)

// AdminController serves the back office.
type AdminController struct {
	admins    *repositories.AdminRepository
	orders    *orders.Service
	shipments *shipments.Service
}

func NewAdminController(admins *repositories.AdminRepository, ord *orders.Service, ship *shipments.Service) *AdminController {
	return &AdminController{admins: admins, orders: ord, shipments: ship}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
}

// Login handles POST /api/admin/login.
func (c *AdminController) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !bind.JSON(w, r, &in) {
		return
	}

	user, err := c.admins.ByEmail(r.Context(), in.Email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		fail(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, in.Password) {
		logger.WithCtx(r.Context()).Warn("controllers: admin login rejected", "email", in.Email)
		response.Error(w, http.StatusUnauthorized, "Neplatný e-mail nebo heslo")
		return
	}

	token, exp, err := auth.IssueToken(user.ID, user.Email, user.Role)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, loginResponse{Token: token, ExpiresAt: exp, Role: user.Role})
}

// ShowOrder handles GET /api/admin/orders/{number}.
func (c *AdminController) ShowOrder(w http.ResponseWriter, r *http.Request) {
	order, err := c.orders.Order(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, order)
}

// CancelOrder handles POST /api/admin/orders/{number}/cancel.
func (c *AdminController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	res, err := c.orders.Cancel(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, res)
}

type rollbackRequest struct {
	Ref   string           `json:"ref"   validate:"nullable,max=64"`
	Items []inventory.Item `json:"items" validate:"required,min=1,dive"`
}

// Rollback handles POST /api/admin/inventory/rollback.
func (c *AdminController) Rollback(w http.ResponseWriter, r *http.Request) {
	var in rollbackRequest
	if !bind.JSON(w, r, &in) {
		return
	}
	response.Success(w, c.orders.Rollback(r.Context(), in.Items, in.Ref))
}

// CreateShipment handles POST /api/admin/orders/{number}/shipment.
func (c *AdminController) CreateShipment(w http.ResponseWriter, r *http.Request) {
	id, err := c.shipments.OrderID(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		fail(w, r, err)
		return
	}
	sh, err := c.shipments.CreateForOrder(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, sh)
}

// Label handles GET /api/admin/orders/{number}/label.
func (c *AdminController) Label(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	id, err := c.shipments.OrderID(r.Context(), number)
	if err != nil {
		fail(w, r, err)
		return
	}
	pdf, err := c.shipments.Label(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+number+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// SyncTracking handles POST /api/admin/tracking/sync.
func (c *AdminController) SyncTracking(w http.ResponseWriter, r *http.Request) {
	if err := c.shipments.SyncTracking(r.Context()); err != nil {
		response.ErrorWith(w, http.StatusBadGateway, "Některé zásilky se nepodařilo aktualizovat", err.Error())
		return
	}
	response.Success(w, map[string]bool{"synced": true})
}
