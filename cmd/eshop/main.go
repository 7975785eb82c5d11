// Command eshop is the shop's single binary: the HTTP/gRPC server, the
// queue worker, the scheduler and the maintenance commands.
//
//	eshop migrate && eshop seed
//	eshop serve
//	eshop shipping:quote --method home_delivery --weight 3
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/shashiranjanraj/eshop/database/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "eshop",
	Short:         "Czech apparel shop: checkout, stock and Packeta shipping",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(scheduleRunCmd)

	rootCmd.AddCommand(shippingQuoteCmd)
	rootCmd.AddCommand(trackingSyncCmd)
}
