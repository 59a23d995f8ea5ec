package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/vetclinic-platform/internal/api/router"
	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

func TestSetupMetricsExposesGoRuntime(t *testing.T) {
	reg, handler := setupMetrics()
	if reg == nil || handler == nil {
		t.Fatalf("expected non-nil registry and handler")
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector output")
	}
}

func TestWireBuildsRouter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	logger := logging.New("error")
	cfg := &appconfig.Config{DefaultHorizonDays: 7, MaxHorizonDays: 60, MissingSchedulePolicy: "clinic_hours"}
	reg, metricsHandler := setupMetrics()

	app := wire(appDeps{
		cfg:      cfg,
		db:       mock,
		notifier: notify.NewLogNotifier(logger),
		registry: reg,
		logger:   logger,
	})
	if app.availability == nil || app.bookings == nil || app.store == nil || app.boards == nil || app.dashboard == nil {
		t.Fatalf("expected every service to be wired: %#v", app)
	}

	routerCfg := app.routerConfig(cfg, logger)
	routerCfg.MetricsHandler = metricsHandler
	h := router.New(routerCfg)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	// Staff routes are closed without a configured secret.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/clinics/c1/board", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}
