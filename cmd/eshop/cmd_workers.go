package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/eshop/config"
	"github.com/shashiranjanraj/eshop/pkg/app"
	"github.com/shashiranjanraj/eshop/pkg/logger"
)

var queueWorkersFlag int

// eshop queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Process queued jobs (shipment creation, order e-mails)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		if config.QueueDriver() != "redis" {
			logger.Warn("queue:work with the memory driver only sees jobs from this process; set QUEUE_DRIVER=redis")
		}

		a, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 1
		}
		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		a.Queue.StartWorkers(ctx, workers)

		<-ctx.Done()
		fmt.Println("Queue worker stopped.")
		return nil
	},
}

// eshop schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run periodic tasks (Packeta tracking sync)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := app.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		fmt.Println("Registered scheduled tasks:")
		for _, t := range a.Scheduler.List() {
			fmt.Println("  •", t)
		}

		a.Scheduler.Start(ctx)
		<-ctx.Done()
		a.Scheduler.Wait()
		fmt.Println("Scheduler stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 4, "Number of concurrent workers")
}
