package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/vetclinic-platform/cmd/mainconfig"
	"github.com/wolfman30/vetclinic-platform/internal/api/router"
	"github.com/wolfman30/vetclinic-platform/internal/app/bootstrap"
	"github.com/wolfman30/vetclinic-platform/internal/availability"
	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
	"github.com/wolfman30/vetclinic-platform/internal/clinicdata"
	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/internal/planning"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting vetclinic availability API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	reg, metricsHandler := setupMetrics()
	checks := map[string]router.Check{"postgres": pool.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	app := wire(appDeps{
		cfg:      cfg,
		db:       pool,
		cache:    bootstrap.BuildClinicCache(redisClient, cfg),
		notifier: bootstrap.BuildNotifier(cfg, awsCfg, logger),
		registry: reg,
		logger:   logger,
	})
	routerCfg := app.routerConfig(cfg, logger)
	routerCfg.MetricsHandler = metricsHandler
	routerCfg.ReadinessChecks = checks

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

type appDeps struct {
	cfg      *appconfig.Config
	db       bookings.DB
	cache    *clinic.Cache
	notifier notify.Notifier
	registry *prometheus.Registry
	logger   *logging.Logger
}

type application struct {
	availability *availability.Service
	bookings     *bookings.Service
	store        *clinicdata.Store
	boards       *planning.Builder
	dashboard    *planning.DashboardRepository
	registry     *prometheus.Registry
}

// wire builds the service graph. The clinic store reads bookings through the
// repository, and the booking service re-checks cells through availability.
func wire(d appDeps) *application {
	repo := bookings.NewRepository(d.db, d.logger)
	store := clinicdata.NewStore(d.db, repo, d.cache, d.logger)

	engine := availability.NewEngine(availability.Options{
		MissingSchedule: availability.ParseSchedulePolicy(d.cfg.MissingSchedulePolicy),
		AllowOverrun:    d.cfg.AllowWindowOverrun,
	})
	availabilitySvc := availability.NewService(store, engine, availability.ServiceConfig{
		DefaultDays: d.cfg.DefaultHorizonDays,
		MaxDays:     d.cfg.MaxHorizonDays,
	}, metrics.NewAvailabilityMetrics(d.registry), d.logger)

	bookingSvc := bookings.NewService(repo, store, availabilitySvc, d.notifier,
		metrics.NewBookingMetrics(d.registry), d.logger)

	return &application{
		availability: availabilitySvc,
		bookings:     bookingSvc,
		store:        store,
		boards:       planning.NewBuilder(store, d.logger),
		dashboard:    planning.NewDashboardRepository(d.db),
		registry:     d.registry,
	}
}

func (a *application) routerConfig(cfg *appconfig.Config, logger *logging.Logger) *router.Config {
	return &router.Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(a.availability, logger),
		BookingsHandler:     bookings.NewHandler(a.bookings, logger, availability.StatusFor),
		BoardHandler:        planning.NewHandler(a.boards, logger),
		DashboardHandler:    planning.NewDashboardHandler(a.dashboard, a.registry, logger),
		ClinicHandler:       clinic.NewHandler(a.store, logger),
		StaffAuthSecret:     cfg.StaffJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
	}
}
