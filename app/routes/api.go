// Package routes maps URLs onto controllers.
package routes

import (
	"net/http"

	"github.com/shashiranjanraj/eshop/app/controllers"
	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/pkg/middleware"
	"github.com/shashiranjanraj/eshop/pkg/rbac"
	"github.com/shashiranjanraj/eshop/pkg/router"
)

// Handlers carries everything the route table mounts. Nil entries are
// skipped, which route:list relies on.
type Handlers struct {
	Catalog  *controllers.CatalogController
	Checkout *controllers.CheckoutController
	Admin    *controllers.AdminController

	Feed    http.HandlerFunc // admin WebSocket feed
	GraphQL http.Handler
	Metrics http.HandlerFunc
}

// Register mounts the public storefront API and the admin API on r.
func Register(r *router.Router, h Handlers) {
	if h.Metrics != nil {
		r.HandleFunc("/metrics", h.Metrics)
	}
	if h.GraphQL != nil {
		r.HandleFunc("/graphql", h.GraphQL.ServeHTTP)
	}

	api := r.Group("/api")

	if h.Catalog != nil {
		api.Post("/shipping/quote", "shipping.quote", h.Catalog.ShippingQuote)
		api.Post("/inventory/availability", "inventory.availability", h.Catalog.Availability)
	}
	if h.Checkout != nil {
		api.Post("/checkout", "checkout.create", h.Checkout.Create)
		api.Post("/checkout/confirm", "checkout.confirm", h.Checkout.Confirm)
	}

	staff := rbac.HasRole(models.RoleAdmin, models.RoleStaff)
	if h.Admin != nil {
		api.Post("/admin/login", "admin.login", h.Admin.Login)

		admin := api.Group("/admin", middleware.Auth, staff)
		admin.Get("/orders/{number}", "admin.orders.show", h.Admin.ShowOrder)
		admin.Post("/orders/{number}/cancel", "admin.orders.cancel", h.Admin.CancelOrder, rbac.HasRole(models.RoleAdmin))
		admin.Post("/orders/{number}/shipment", "admin.orders.shipment", h.Admin.CreateShipment)
		admin.Get("/orders/{number}/label", "admin.orders.label", h.Admin.Label)
		admin.Post("/inventory/rollback", "admin.inventory.rollback", h.Admin.Rollback, rbac.HasRole(models.RoleAdmin))
		admin.Post("/tracking/sync", "admin.tracking.sync", h.Admin.SyncTracking)
	}

	if h.Feed != nil {
		r.HandleFunc("/ws/admin", middleware.Auth(staff(h.Feed)).ServeHTTP)
	}
}
