package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/vextrus/vextrus-erp-sub014/internal/application/event"
	financeapp "github.com/vextrus/vextrus-erp-sub014/internal/application/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/finance"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared"
	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/cache"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/config"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/event"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/logger"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/migration"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/persistence"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/scheduler"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/telemetry"
	"github.com/vextrus/vextrus-erp-sub014/migrations"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// invoicePaymentsConsumer names the idempotency scope of the payment-to-invoice workflow
const invoicePaymentsConsumer = "invoice-payments"

func main() {
	os.Exit(serve(os.Args[1:]))
}

// serve runs the worker and returns the process exit code once its deferred
// cleanup has run
func serve(args []string) int {
	var (
		configPath string
		migrate    bool
	)
	flags := flag.NewFlagSet("ledger", flag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "Path to a TOML config file (default: search ./config.toml)")
	flags.BoolVar(&migrate, "migrate", false, "Apply the embedded migrations before starting")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, migrate); err != nil {
		log.Error("Ledger worker stopped with error", zap.Error(err))
		return 1
	}
	log.Info("Ledger worker exited")
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) error {
	log.Info("Starting ledger worker",
		zap.String("env", cfg.App.Env),
		zap.Bool("processor_enabled", cfg.Event.ProcessorEnabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled()),
	)

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("logger provider: %w", err)
	}
	log = logs.Bridge(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("tracer provider: %w", err)
	}
	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("meter provider: %w", err)
	}
	defer shutdownTelemetry(log, tracer, meters, logs)

	metrics, err := telemetry.NewLedgerMetrics(meters.Meter("ledger"), log)
	if err != nil {
		return fmt.Errorf("ledger metrics: %w", err)
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithDatabaseLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithDatabaseTracing(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}),
	)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()

	if migrate {
		if err := applyMigrations(db, log); err != nil {
			return err
		}
	}

	caches := cache.NewFactory(cfg.Redis, cache.WithLogger(log))
	defer func() {
		if err := caches.Close(); err != nil {
			log.Warn("Error closing redis client", zap.Error(err))
		}
	}()

	outboxRepo := event.NewGormOutboxRepository(db.DB)
	events := persistence.NewGormEventStore(db.DB,
		persistence.WithEventRecorder(event.NewOutboxRecorder()),
		persistence.WithAppendObserver(metrics),
		persistence.WithEventStoreLogger(log),
	)
	snapshots, err := caches.SnapshotStore(persistence.NewGormSnapshotStore(db.DB))
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	sequences, err := caches.SequenceGenerator(persistence.NewGormSequenceGenerator(db.DB))
	if err != nil {
		return fmt.Errorf("sequence generator: %w", err)
	}
	idempotency, err := caches.IdempotencyStore()
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}

	codec := event.NewFinanceSerializer()
	deps := financeapp.HandlerDeps{
		Sequence: sequences,
		Tax: finance.NewTaxCalculationService(finance.TaxConfig{
			NoTINMultiplier: cfg.Tax.NoTINMultiplierDecimal(),
			RoundingPlaces:  cfg.Tax.RoundingPlaces,
		}),
		Retry: financeapp.RetryConfig{
			MaxAttempts:     cfg.Ledger.RetryAttempts,
			InitialInterval: cfg.Ledger.RetryInitialInterval,
			MaxInterval:     cfg.Ledger.RetryMaxInterval,
		},
		Metrics:  metrics,
		Logger:   log,
		Window:   valueobject.NewOpenPeriodWindow(cfg.Ledger.PastFiscalYearsOpen, cfg.Ledger.FutureDaysOpen),
		Currency: valueobject.Currency(cfg.Ledger.DefaultCurrency),
	}

	invoices := financeapp.NewAggregateRepository(events, codec, finance.AggregateTypeInvoice,
		finance.NewInvoiceAggregate,
		financeapp.WithSnapshots(snapshots, cfg.Ledger.SnapshotEvery),
		financeapp.WithRepositoryLogger(log),
	)
	issues := persistence.NewGormReconciliationIssueRepository(db.DB)

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewIdempotentHandler(invoicePaymentsConsumer,
		financeapp.NewPaymentCompletedHandler(invoices, issues, deps),
		idempotency, log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Event.IdempotencyTTL,
			Enabled: true,
		}),
	))

	processor := event.NewOutboxProcessor(outboxRepo, bus, codec, event.OutboxProcessorConfig{
		BatchSize:        cfg.Event.BatchSize,
		PollInterval:     cfg.Event.PollInterval,
		CleanupEnabled:   cfg.Event.CleanupEnabled,
		CleanupRetention: cfg.Event.CleanupRetention,
	}, log)

	maintenance := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(),
		eventapp.NewMaintenanceExecutor(eventapp.NewOutboxService(outboxRepo, log), eventapp.MaintenanceConfig{
			BacklogWarnThreshold: cfg.Event.BacklogWarnThreshold,
			AutoRequeueDead:      cfg.Event.AutoRequeueDead,
		}, log),
		log,
	)
	trigger := scheduler.NewIntervalTrigger(scheduler.IntervalTriggerConfig{
		Intervals: []scheduler.Interval{
			{Kind: scheduler.JobKindOutboxHealth, Every: cfg.Event.HealthCheckInterval},
			{Kind: scheduler.JobKindDeadLetterRequeue, Every: cfg.Event.RequeueInterval},
		},
	}, maintenance, log)

	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	if err := maintenance.Start(ctx); err != nil {
		return fmt.Errorf("maintenance scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Event.ProcessorEnabled {
		g.Go(func() error { return processor.Run(gctx) })
	} else {
		log.Warn("Outbox processor disabled; events will accumulate in the outbox")
	}
	g.Go(func() error { return trigger.Run(gctx) })

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := maintenance.Stop(shutdownCtx); stopErr != nil {
		log.Warn("Error stopping maintenance scheduler", zap.Error(stopErr))
	}
	if stopErr := bus.Stop(shutdownCtx); stopErr != nil {
		log.Warn("Error stopping event bus", zap.Error(stopErr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func applyMigrations(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, log)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	// closing the migrator would close the shared pool, so it is left open
	if err := m.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func shutdownTelemetry(log *zap.Logger, tracer *telemetry.TracerProvider, meters *telemetry.MeterProvider, logs *telemetry.LoggerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := meters.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logs.Shutdown(ctx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}
}
