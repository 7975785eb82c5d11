package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/eshop/app/controllers"
	"github.com/shashiranjanraj/eshop/app/routes"
	"github.com/shashiranjanraj/eshop/internal/server"
	"github.com/shashiranjanraj/eshop/pkg/app"
	"github.com/shashiranjanraj/eshop/pkg/database"
	"github.com/shashiranjanraj/eshop/pkg/router"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// eshop serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP and gRPC servers with in-process workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		a.Start(ctx)
		return server.Run(ctx, a.Handler(), database.Ping)
	},
}

// eshop route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := router.New()
		routes.Register(r, routes.Handlers{
			Catalog:  &controllers.CatalogController{},
			Checkout: &controllers.CheckoutController{},
			Admin:    &controllers.AdminController{},
			Feed:     http.NotFound,
			GraphQL:  http.NotFoundHandler(),
			Metrics:  http.NotFound,
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range r.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}
