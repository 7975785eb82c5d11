// Package app assembles the shop from its parts. Boot reads the
// configuration and dials the backing services; New takes ready-made
// dependencies so tests can build the same graph over an in-memory DB.
//
//	a, err := app.Boot(ctx)
//	if err != nil { ... }
//	defer a.Close(context.Background())
//	a.Start(ctx)
//	server.Run(ctx, a.Handler(), database.Ping)
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/jobs"
	"github.com/shashiranjanraj/eshop/app/listeners"
	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/services/inventory"
	"github.com/shashiranjanraj/eshop/app/services/orders"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/app/services/shipping"
	"github.com/shashiranjanraj/eshop/config"
	"github.com/shashiranjanraj/eshop/pkg/audit"
	"github.com/shashiranjanraj/eshop/pkg/cache"
	"github.com/shashiranjanraj/eshop/pkg/database"
	"github.com/shashiranjanraj/eshop/pkg/event"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/mail"
	"github.com/shashiranjanraj/eshop/pkg/middleware"
	"github.com/shashiranjanraj/eshop/pkg/notification"
	"github.com/shashiranjanraj/eshop/pkg/packeta"
	"github.com/shashiranjanraj/eshop/pkg/payment"
	"github.com/shashiranjanraj/eshop/pkg/queue"
	"github.com/shashiranjanraj/eshop/pkg/schedule"
	"github.com/shashiranjanraj/eshop/pkg/storage"
	"github.com/shashiranjanraj/eshop/pkg/ws"
)

// TrackingSyncTask is the scheduler entry that polls Packeta.
const TrackingSyncTask = "tracking:sync"

// Carrier is everything the shop asks of Packeta.
type Carrier interface {
	shipments.Carrier
	orders.PacketCanceller
}

// Deps are the external collaborators. Zero fields get in-process
// defaults, except DB, Gateway and Carrier which are required.
type Deps struct {
	DB       *gorm.DB
	Cache    cache.Store
	Queue    queue.Driver
	Gateway  payment.Gateway
	Carrier  Carrier
	Disk     storage.Disk
	Mailer   mail.Sender
	Alerter  notification.Alerter
	Recorder audit.Recorder
}

// App is the wired shop.
type App struct {
	DB        *gorm.DB
	Bus       *event.Bus
	Queue     *queue.Manager
	Hub       *ws.Hub
	Scheduler *schedule.Scheduler
	Limiter   *middleware.Limiter

	Calculator *shipping.Calculator
	Adjuster   *inventory.Adjuster
	Orders     *orders.Service
	Shipments  *shipments.Service

	closers []func(context.Context) error
}

// New wires services, listeners, jobs and the schedule over d.
func New(d Deps) (*App, error) {
	if d.DB == nil || d.Gateway == nil || d.Carrier == nil {
		return nil, errors.New("app: DB, Gateway and Carrier are required")
	}
	if d.Cache == nil {
		d.Cache = cache.NewMemory()
	}
	if d.Queue == nil {
		d.Queue = queue.NewMemoryDriver()
	}
	if d.Disk == nil {
		d.Disk = storage.Default()
	}
	if d.Mailer == nil {
		d.Mailer = mail.Default()
	}
	if d.Alerter == nil {
		d.Alerter = notification.Default()
	}
	if d.Recorder == nil {
		d.Recorder = audit.Nop{}
	}

	a := &App{
		DB:        d.DB,
		Bus:       event.NewBus(),
		Queue:     queue.NewManager(d.Queue),
		Hub:       ws.NewHub(),
		Scheduler: schedule.New(),
		Limiter:   middleware.NewLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 200), time.Minute),
	}
	a.Queue.UseDB(d.DB)

	weights := shipping.NewCachedWeights(repositories.NewProductRepository(d.DB), d.Cache, config.WeightCacheTTL())
	a.Calculator = shipping.NewCalculator(weights)
	a.Adjuster = inventory.New(repositories.NewStockRepository(d.DB), d.Recorder, a.Bus, config.LowStockThreshold())
	a.Orders = orders.NewService(d.DB, a.Adjuster, a.Calculator, d.Gateway, d.Carrier, a.Bus)
	a.Shipments = shipments.NewService(d.DB, d.Carrier, d.Disk, a.Bus, shipments.Options{
		HomeDeliveryCarrier: config.PacketaHomeDeliveryCarrier(),
		SyncConcurrency:     config.Int("TRACKING_SYNC_CONCURRENCY", 4),
	})

	jobs.Register(a.Queue, jobs.Deps{
		Orders:    repositories.NewOrderRepository(d.DB),
		Shipments: a.Shipments,
		Mailer:    d.Mailer,
		ShopName:  config.Get("SHOP_NAME", "eshop"),
	})
	listeners.Register(a.Bus, listeners.Deps{Queue: a.Queue, Feed: a.Hub, Alerter: d.Alerter})

	a.Scheduler.Every(config.TrackingSyncInterval()).
		Name(TrackingSyncTask).
		WithoutOverlapping().
		Run(a.Shipments.SyncTracking)

	return a, nil
}

// Boot connects everything named by the configuration and calls New.
// Redis and MongoDB are optional: without them the shop runs on the
// in-process cache, the memory queue and a no-op audit trail.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("app: config: %w", err)
	}
	if err := database.Connect(); err != nil {
		return nil, fmt.Errorf("app: database: %w", err)
	}
	if err := cache.Connect(); err != nil {
		logger.Warn("app: redis unavailable, using in-process cache", "error", err)
	}
	storage.Connect(ctx)

	d := Deps{
		DB:      database.DB,
		Cache:   cache.Default,
		Gateway: payment.FromConfig(),
		Carrier: packeta.FromConfig(),
		Disk:    storage.Default(),
	}

	if config.QueueDriver() == "redis" {
		if cache.RDB != nil {
			d.Queue = queue.NewRedisDriver(cache.RDB)
		} else {
			logger.Warn("app: QUEUE_DRIVER=redis but redis is down, using memory queue")
		}
	}

	var closers []func(context.Context) error
	if uri := config.MongoURI(); uri != "" {
		b, err := audit.ConnectMongo(ctx, uri, config.MongoDatabase())
		if err != nil {
			logger.Warn("app: stock audit disabled", "error", err)
		} else {
			d.Recorder = b
			closers = append(closers, b.Close)
		}
	}

	a, err := New(d)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	logger.Info("app: booted", "env", config.AppEnv(), "db", config.DatabaseDriver(), "queue", config.QueueDriver())
	return a, nil
}

// Start runs the background loops of a serving process until ctx ends:
// the admin feed hub, queue workers, the scheduler and the rate limiter
// sweeper.
func (a *App) Start(ctx context.Context) {
	go a.Hub.Run(ctx)
	go a.Limiter.Sweep(ctx)
	a.Queue.StartWorkers(ctx, config.Int("QUEUE_WORKERS", 4))
	if config.Get("SCHEDULER_IN_PROCESS", "true") == "true" {
		a.Scheduler.Start(ctx)
	}
}

// Close flushes the audit trail and other sinks.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, fn := range a.closers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
