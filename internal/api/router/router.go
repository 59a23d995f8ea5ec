package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/vetclinic-platform/internal/availability"
	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
	httpmiddleware "github.com/wolfman30/vetclinic-platform/internal/http/middleware"
	"github.com/wolfman30/vetclinic-platform/internal/planning"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Check reports whether a backing dependency is reachable.
type Check func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	BookingsHandler     *bookings.Handler
	BoardHandler        *planning.Handler
	DashboardHandler    *planning.DashboardHandler
	ClinicHandler       *clinic.Handler
	MetricsHandler      http.Handler
	ReadinessChecks     map[string]Check
	StaffAuthSecret     string
	CORSAllowedOrigins  []string
	RateLimitRPS        float64
	RateLimitBurst      int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", health)
	r.Get("/ready", ready(cfg.ReadinessChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Client-facing booking flow.
	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		if cfg.AvailabilityHandler != nil {
			public.Get("/clinics/{clinicID}/availability", cfg.AvailabilityHandler.GetAvailability)
		}
		if cfg.BookingsHandler != nil {
			public.Post("/clinics/{clinicID}/bookings", cfg.BookingsHandler.CreateBooking)
		}
	})

	// Staff routes, scoped to the clinics listed in the token.
	r.Group(func(staff chi.Router) {
		staff.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))

		scoped := staff.With(httpmiddleware.RequireClinicAccess)
		if cfg.BookingsHandler != nil {
			scoped.Post("/clinics/{clinicID}/blocks", cfg.BookingsHandler.CreateBlock)
			scoped.Delete("/clinics/{clinicID}/bookings/{bookingID}", cfg.BookingsHandler.CancelBooking)
		}
		if cfg.BoardHandler != nil {
			scoped.Get("/clinics/{clinicID}/board", cfg.BoardHandler.GetBoard)
		}
		if cfg.DashboardHandler != nil {
			scoped.Get("/clinics/{clinicID}/dashboard", cfg.DashboardHandler.GetDashboard)
		}
		if cfg.ClinicHandler != nil {
			staff.With(httpmiddleware.RequireAdmin).Mount("/admin/clinics", cfg.ClinicHandler.Routes())
		}
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready runs every check with a shared deadline. Any failure answers 503
// with the failing dependency names.
func ready(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
