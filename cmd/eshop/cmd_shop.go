package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/eshop/app/services/shipping"
	"github.com/shashiranjanraj/eshop/pkg/app"
	"github.com/shashiranjanraj/eshop/pkg/schedule"
)

var (
	quoteMethod string
	quoteWeight float64
)

// eshop shipping:quote
var shippingQuoteCmd = &cobra.Command{
	Use:   "shipping:quote",
	Short: "Price a Packeta shipment for a weight",
	RunE: func(cmd *cobra.Command, args []string) error {
		method := shipping.Method(quoteMethod)
		if !method.Valid() {
			return fmt.Errorf("unknown method %q (pickup or home_delivery)", quoteMethod)
		}
		if quoteWeight < 0 {
			return fmt.Errorf("weight must not be negative")
		}

		q := shipping.QuoteFor(quoteWeight, method)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(w, "base\t%d Kč\t\n", q.BaseCZK)
		fmt.Fprintf(w, "fuel\t%d Kč\t\n", q.FuelCZK)
		fmt.Fprintf(w, "toll\t%.2f Kč\t\n", q.TollCZK)
		fmt.Fprintf(w, "extra\t%d Kč\t\n", q.ExtraCZK)
		fmt.Fprintf(w, "total\t%d Kč\t\n", q.TotalCZK)
		return w.Flush()
	},
}

// eshop tracking:sync
var trackingSyncCmd = &cobra.Command{
	Use:   "tracking:sync",
	Short: "Poll Packeta once for every open shipment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if err := schedule.RunOnce(ctx, app.TrackingSyncTask, a.Shipments.SyncTracking); err != nil {
			fmt.Fprintln(os.Stderr, "some shipments failed to sync:", err)
			return err
		}
		fmt.Println("Tracking synced.")
		return nil
	},
}

func init() {
	shippingQuoteCmd.Flags().StringVarP(&quoteMethod, "method", "m", string(shipping.Pickup), "pickup or home_delivery")
	shippingQuoteCmd.Flags().Float64VarP(&quoteWeight, "weight", "k", 1, "parcel weight in kg")
}
