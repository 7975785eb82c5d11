package app

import (
	"net/http"

	"github.com/shashiranjanraj/eshop/app/controllers"
	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/routes"
	"github.com/shashiranjanraj/eshop/pkg/graphql"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
	"github.com/shashiranjanraj/eshop/pkg/middleware"
	"github.com/shashiranjanraj/eshop/pkg/reqid"
	"github.com/shashiranjanraj/eshop/pkg/router"
)

// Router builds the route table with the global middleware stack.
//
// Order, outermost first: metrics (total latency), recovery, request id
// (before anything logs), tracing, access log, CORS, rate limit.
func (a *App) Router() *router.Router {
	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Tracing)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(a.Limiter))

	h := routes.Handlers{
		Catalog:  controllers.NewCatalogController(a.Calculator, a.Adjuster),
		Checkout: controllers.NewCheckoutController(a.Orders),
		Admin:    controllers.NewAdminController(repositories.NewAdminRepository(a.DB), a.Orders, a.Shipments),
		Feed:     a.Hub.Serve,
		Metrics:  metrics.Handler(),
	}

	schema, err := graphql.NewSchema(a.Calculator, a.Adjuster)
	if err != nil {
		logger.Error("app: graphql schema disabled", "error", err)
	} else {
		h.GraphQL = graphql.Handler(schema)
	}

	routes.Register(r, h)
	return r
}

// Handler is the HTTP entry point.
func (a *App) Handler() http.Handler { return a.Router() }
