package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packagebuilder-backend/api/routes"
	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/internal/cron"
	"github.com/angelmondragon/packagebuilder-backend/internal/pricing"
	"github.com/angelmondragon/packagebuilder-backend/internal/sessions"
	"github.com/angelmondragon/packagebuilder-backend/internal/submissions"
	"github.com/angelmondragon/packagebuilder-backend/pkg/config"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db"
	"github.com/angelmondragon/packagebuilder-backend/pkg/env"
	"github.com/angelmondragon/packagebuilder-backend/pkg/instance"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
	"github.com/angelmondragon/packagebuilder-backend/pkg/metrics"
	"github.com/angelmondragon/packagebuilder-backend/pkg/migrate"
	"github.com/angelmondragon/packagebuilder-backend/pkg/outbox"
	"github.com/angelmondragon/packagebuilder-backend/pkg/redis"
)

const (
	serviceKind     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	engine, err := newPricingEngine(cfg.Pricing)
	if err != nil {
		logg.Error(ctx, "failed to build pricing tables", err)
		os.Exit(1)
	}

	submissionService, err := submissions.NewService(
		dbClient,
		submissions.NewRepository(dbClient.DB()),
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create submission service", err)
		os.Exit(1)
	}

	wizardMetrics := metrics.NewWizardMetrics(prometheus.DefaultRegisterer)
	registry, err := sessions.NewRegistry(sessions.Params{
		Loader:          catalogService,
		Engine:          engine,
		Persister:       submissionService,
		Logger:          logg,
		Recorder:        wizardMetrics,
		Gauge:           wizardMetrics,
		StepDelay:       cfg.Wizard.StepDelay,
		IdleTTL:         cfg.Wizard.SessionTTL,
		MaxSessions:     cfg.Wizard.MaxSessions,
		DefaultCurrency: cfg.Pricing.DefaultCurrency,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session registry", err)
		os.Exit(1)
	}
	defer registry.Close()

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	sweeper, err := newSessionSweeper(logg, registry, cronMetrics, cfg.Wizard.SweepInterval)
	if err != nil {
		logg.Error(ctx, "failed to create session sweeper", err)
		os.Exit(1)
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session sweeper stopped unexpectedly", err)
		}
	}()

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Catalog:     catalogService,
			Pricing:     engine,
			Sessions:    registry,
			Gatherer:    prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}
}

// newPricingEngine builds the plan and support tables from config. An empty
// table falls back to the built-in defaults.
func newPricingEngine(cfg config.PricingConfig) (*pricing.Engine, error) {
	plans, support := pricing.DefaultPlans(), pricing.DefaultSupportLevels()
	var err error
	if len(cfg.PlanNames) > 0 {
		if plans, err = pricing.TablesFrom(cfg.PlanNames, cfg.PlanDiscounts); err != nil {
			return nil, err
		}
	}
	if len(cfg.SupportNames) > 0 {
		if support, err = pricing.TablesFrom(cfg.SupportNames, cfg.SupportMultipliers); err != nil {
			return nil, err
		}
	}
	return pricing.NewEngine(plans, support)
}

// newSessionSweeper expires idle sessions in-process. The registry is local
// to this instance so a process lock is enough.
func newSessionSweeper(logg *logger.Logger, registry *sessions.Registry, m *metrics.CronJobMetrics, interval time.Duration) (*cron.Service, error) {
	job, err := cron.NewSessionSweepJob(logg, registry)
	if err != nil {
		return nil, err
	}
	jobs, err := cron.NewRegistry(job)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Name:     "session-sweeper",
		Logger:   logg,
		Registry: jobs,
		Lock:     &cron.ProcessLock{},
		Metrics:  m,
		Interval: interval,
	})
}
