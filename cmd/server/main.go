package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	appanalytics "github.com/minicrm/backend/internal/application/analytics"
	crmapp "github.com/minicrm/backend/internal/application/crm"
	"github.com/minicrm/backend/internal/infrastructure/cache"
	"github.com/minicrm/backend/internal/infrastructure/config"
	"github.com/minicrm/backend/internal/infrastructure/event"
	"github.com/minicrm/backend/internal/infrastructure/logger"
	"github.com/minicrm/backend/internal/infrastructure/migration"
	"github.com/minicrm/backend/internal/infrastructure/persistence"
	"github.com/minicrm/backend/internal/infrastructure/scheduler"
	"github.com/minicrm/backend/internal/infrastructure/telemetry"
	"github.com/minicrm/backend/internal/interfaces/http/handler"
	"github.com/minicrm/backend/internal/interfaces/http/middleware"
	"github.com/minicrm/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel := setupTelemetry(ctx, cfg, baseLog)
	log := telemetry.BridgeLogger(baseLog, tel.logs, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting CRM analytics backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("driver", cfg.Database.Driver),
	)

	// Database
	gormCfg := logger.DefaultGormConfig()
	gormCfg.Level = logger.ParseGormLevel(cfg.Database.LogLevel)
	dbOpts := []persistence.Option{persistence.WithLogger(logger.NewGormLogger(log, gormCfg))}
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		if cfg.Database.Driver == config.DriverSQLite {
			dbTracing.DBSystem = "sqlite"
		}
		dbOpts = append(dbOpts, persistence.WithPlugin(telemetry.NewDBTracingPlugin(dbTracing, log)))
	}

	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := migrateSchema(&cfg.Database, db, log); err != nil {
		log.Fatal("Failed to prepare schema", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	campaignRepo := persistence.NewGormCampaignRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)

	// Analytics core
	metricCache := cache.NewMetricCache(
		cache.WithCapacity(cfg.Analytics.CacheCapacity),
		cache.WithMaxAge(cfg.Analytics.CacheMaxAge),
		cache.WithLogger(log),
	)

	var recorder appanalytics.Recorder = appanalytics.NopRecorder{}
	if tel.meter.IsEnabled() {
		am, err := telemetry.NewAnalyticsMetrics(telemetry.AnalyticsMetricsConfig{
			Meter:  tel.meter.Meter("minicrm/analytics"),
			Logger: log,
			CacheSize: func() (int64, int64) {
				s := metricCache.GetStats()
				return int64(s.Entries), int64(s.Capacity)
			},
		})
		if err != nil {
			log.Warn("Analytics metrics disabled", zap.Error(err))
		} else {
			defer am.Stop()
			recorder = am
		}
	}

	invalidation := cache.NewInvalidationTarget(ctx, metricCache, cache.InvalidatorSettings{
		RedisEnabled: cfg.Redis.Enabled,
		Redis: cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Channel: cfg.Redis.Channel,
	}, log)
	defer func() {
		if err := invalidation.Close(); err != nil {
			log.Warn("Error closing invalidation broadcaster", zap.Error(err))
		}
	}()

	eventBus := event.NewInMemoryEventBus(log)
	coordinator := appanalytics.NewCoordinator(invalidation,
		appanalytics.WithCoordinatorLogger(log),
		appanalytics.WithCoordinatorRecorder(recorder),
	)
	eventBus.Subscribe(coordinator, coordinator.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	engine := appanalytics.NewEngine(persistence.NewEntityReader(customerRepo, campaignRepo, orderRepo))
	queryService := appanalytics.NewQueryService(metricCache, engine,
		appanalytics.WithQueryLogger(log),
		appanalytics.WithQueryRecorder(recorder),
	)

	jobs, warmTrigger := startWarmer(ctx, cfg.Analytics.WarmInterval, campaignRepo, queryService, log)

	// CRM services
	serviceOpts := []crmapp.Option{
		crmapp.WithEventPublisher(eventBus),
		crmapp.WithPublishFailureFlush(invalidation),
		crmapp.WithLogger(log),
	}
	customerService := crmapp.NewCustomerService(customerRepo, serviceOpts...)
	campaignService := crmapp.NewCampaignService(campaignRepo, customerRepo, orderRepo, serviceOpts...)
	orderService := crmapp.NewOrderService(orderRepo, customerRepo, campaignRepo, serviceOpts...)
	reportService := crmapp.NewReportService(customerRepo, campaignRepo, orderRepo)

	// HTTP
	httpEngine, err := router.NewEngine(router.EngineConfig{
		HTTP: cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Meter: tel.meter,
	}, log, router.Handlers{
		Customer:  handler.NewCustomerHandler(customerService),
		Campaign:  handler.NewCampaignHandler(campaignService),
		Order:     handler.NewOrderHandler(orderService),
		Analytics: handler.NewAnalyticsHandler(queryService, metricCache),
		Report:    handler.NewReportHandler(reportService),
		System:    handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, db),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to start server", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if warmTrigger != nil {
		if err := warmTrigger.Stop(shutdownCtx); err != nil {
			log.Warn("Error stopping warm trigger", zap.Error(err))
		}
		if err := jobs.Stop(shutdownCtx); err != nil {
			log.Warn("Error stopping scheduler", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Error stopping event bus", zap.Error(err))
	}
	tel.shutdown(shutdownCtx, log)

	log.Info("Server exited gracefully")
}

// migrateSchema applies the SQL migrations on Postgres and falls back to
// the GORM models on SQLite, which golang-migrate's postgres driver cannot
// target. Migrations run on their own connection because closing the
// migrator closes the database handle it was given.
func migrateSchema(cfg *config.DatabaseConfig, db *persistence.Database, log *zap.Logger) error {
	if db.Driver == config.DriverSQLite {
		return persistence.AutoMigrate(db.DB)
	}

	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, os.Getenv("CRM_MIGRATIONS_PATH"), log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		_ = m.Close()
	}()
	return m.Up()
}

// startWarmer runs the campaign metric warmer every interval. A zero
// interval leaves warming off and returns nil values.
func startWarmer(ctx context.Context, interval time.Duration, campaigns scheduler.CampaignLister, metrics scheduler.SubjectQuerier, log *zap.Logger) (*scheduler.Scheduler, *scheduler.IntervalTrigger) {
	if interval <= 0 {
		return nil, nil
	}

	jobs := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(), log)
	jobs.Register(scheduler.JobWarmCampaignMetrics, scheduler.NewMetricWarmer(campaigns, metrics, log))
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	trigger, err := scheduler.NewIntervalTrigger(interval, scheduler.JobWarmCampaignMetrics, jobs, log)
	if err != nil {
		log.Fatal("Invalid warm interval", zap.Error(err))
	}
	if err := trigger.Start(ctx); err != nil {
		log.Fatal("Failed to start warm trigger", zap.Error(err))
	}
	return jobs, trigger
}

type telemetryProviders struct {
	tracer *telemetry.TracerProvider
	meter  *telemetry.MeterProvider
	logs   *telemetry.LoggerProvider
}

// setupTelemetry starts the OpenTelemetry providers. A provider that fails
// to start is logged and left disabled.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) telemetryProviders {
	tc := cfg.Telemetry
	var out telemetryProviders
	var err error

	out.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	}

	out.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		log.Warn("Metrics disabled", zap.Error(err))
	}

	out.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		log.Warn("Log export disabled", zap.Error(err))
	}
	return out
}

func (t telemetryProviders) shutdown(ctx context.Context, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if t.tracer != nil {
		if err := t.tracer.Shutdown(ctx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	if t.meter != nil {
		if err := t.meter.Shutdown(ctx); err != nil {
			log.Warn("Meter shutdown failed", zap.Error(err))
		}
	}
	if t.logs != nil {
		if err := t.logs.Shutdown(ctx); err != nil {
			log.Warn("Logger provider shutdown failed", zap.Error(err))
		}
	}
}
