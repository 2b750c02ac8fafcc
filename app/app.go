package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/api"
	"wb-seller-stats/cache"
	"wb-seller-stats/config"
	"wb-seller-stats/database"
	"wb-seller-stats/database/snapshots"
	"wb-seller-stats/notifications"
	"wb-seller-stats/realtime"
	"wb-seller-stats/report"
	"wb-seller-stats/tenants"
	"wb-seller-stats/wbapi"
)

// runLockTTL bounds how long a crashed run can block its tenant
const runLockTTL = 3 * time.Hour

// eventsChannel mirrors run events to Redis subscribers
const eventsChannel = "wbstats:events"

// App represents the main application
type App struct {
	config    *config.Config
	log       *logrus.Logger
	db        *database.Database
	redis     *cache.RedisClient
	broker    *realtime.Broker
	runner    *ReportRunner
	scheduler *Scheduler
	server    *api.Server
	webhooks  *notifications.WebhookManager
}

// New creates a new application instance
func New(cfg *config.Config, log *logrus.Logger) *App {
	return &App{
		config: cfg,
		log:    log,
	}
}

// Start starts the application
func (a *App) Start() error {
	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := time.LoadLocation(a.config.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULE_TZ: %w", err)
	}

	registry, err := tenants.Load(a.config.TenantsFile)
	if err != nil {
		return err
	}
	a.log.WithField("tenants", registry.Names()).Info("Tenants loaded")

	// 1. Database Connection
	a.log.WithField("driver", a.config.DatabaseDriver).Info("Connecting to database...")
	db, err := database.Connect(a.config.DatabaseDriver, a.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	store, err := snapshots.NewRepository(ctx, db.DB(), a.config.Report.RetentionDays, time.Now().In(loc))
	if err != nil {
		return fmt.Errorf("snapshot store initialization failed: %w", err)
	}

	// 2. Redis Connection
	a.redis = cache.NewRedisClient(a.config.RedisAddr(), a.config.RedisPassword, a.log)

	// 3. Provider access
	p := a.config.Provider
	client := wbapi.NewClient(wbapi.ClientConfig{
		Attempts: p.RequestAttempts,
		Timeout:  p.RequestTimeout,
		Wait:     p.RequestWait,
		RPM:      p.RequestsPerMin,
	}, a.log)
	provider := wbapi.NewAPI(client, wbapi.Endpoints{
		Funnel:        p.FunnelURL,
		FunnelLegacy:  p.FunnelLegacyURL,
		RegionSale:    p.RegionSaleURL,
		FinanceReport: p.FinanceReportURL,
	}, wbapi.Pager{
		Limit:    p.PageLimit,
		MaxPages: p.MaxPages,
		Delay:    p.PageDelay,
		Log:      a.log,
	}, a.log)
	provider.SetFinanceRetry(p.FinanceAttempts, p.FinanceWait)

	// 4. Realtime Broker
	a.broker = realtime.NewBroker(a.log)
	go a.broker.Run()

	w := a.config.Webhook
	a.webhooks = notifications.NewWebhookManager(
		notifications.ParseWebhooks(w.URLs, w.Events, w.AuthHeader, w.AuthValue, w.Retries, w.RetryDelay),
		a.log,
	)

	// 5. Pipeline
	aggregator := NewSalesAggregator(provider, store, a.config.Report.LookbackDays, loc, a.log)
	writer := report.NewWriter(
		report.NewXLSXSink(a.config.Sink.OutputDir, ""),
		a.config.Sink.Attempts,
		a.config.Sink.Wait,
		a.log,
	)
	a.runner = NewReportRunner(
		registry,
		aggregator,
		writer,
		cache.NewReportCache(a.redis),
		cache.NewRunLock(a.redis, runLockTTL),
		&eventFanout{broker: a.broker, webhooks: a.webhooks, redis: a.redis, log: a.log},
		a.log,
	)

	finance := NewFinanceReporter(
		registry,
		provider,
		report.NewWriter(
			report.NewXLSXSink(a.config.Sink.OutputDir, FinanceSheet),
			a.config.Sink.Attempts,
			a.config.Sink.Wait,
			a.log,
		),
		loc,
		a.log,
	)

	var wg sync.WaitGroup

	// 6. Daily schedule
	if a.config.Schedule.Enabled {
		a.scheduler = NewScheduler(a.config.Schedule.Hour, a.config.Schedule.Minute, loc, a.runner.RunAll, a.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scheduler.Start(ctx)
		}()
	}

	// 7. API Server
	a.server = api.NewServer(ctx, a.runner, provider, finance, registry, a.broker, loc, a.log)
	go func() {
		if err := a.server.Start(a.config.APIPort); err != nil {
			a.log.WithError(err).Error("API server stopped")
		}
	}()

	err = a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	// Setup signal handling
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt signal
	<-interrupt
	a.log.Info("Shutdown signal received, initiating graceful shutdown...")

	// Cancel context to stop all goroutines
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if a.scheduler != nil {
			a.scheduler.Stop()
		}
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("Error shutting down API server")
		}
		a.runner.Wait()
		a.webhooks.Wait()
		a.broker.Stop()

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Error("Error closing database")
			}
		}
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Error("Error closing Redis")
		}
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		a.log.Info("Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out")
	}
}

// eventFanout sends run events to SSE clients, configured webhooks and,
// when Redis is up, the events channel
type eventFanout struct {
	broker   *realtime.Broker
	webhooks *notifications.WebhookManager
	redis    *cache.RedisClient
	log      logrus.FieldLogger
}

func (f *eventFanout) Broadcast(event string, payload interface{}) {
	f.broker.Broadcast(event, payload)
	f.webhooks.Broadcast(event, payload)
	if f.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg := map[string]interface{}{"event": event, "payload": payload}
	if err := f.redis.Publish(ctx, eventsChannel, msg); err != nil {
		f.log.WithError(err).WithField("event", event).Debug("Failed to publish event to Redis")
	}
}
