package availability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Querier is the read side the handler depends on.
type Querier interface {
	Availability(ctx context.Context, q Query) (Result, error)
}

// Handler serves GET /clinics/{clinicID}/availability.
type Handler struct {
	svc    Querier
	logger *logging.Logger
}

func NewHandler(svc Querier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// GetAvailability handles ?days=&practitioner_id=&animals=&now=.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.svc.Availability(r.Context(), q)
	if err != nil {
		if !errors.Is(err, ErrInvalidInput) {
			h.logger.Error("availability query failed", "clinic_id", q.ClinicID, "error", err)
		}
		WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func parseQuery(r *http.Request) (Query, error) {
	params := r.URL.Query()
	q := Query{
		ClinicID:       chi.URLParam(r, "clinicID"),
		PractitionerID: params.Get("practitioner_id"),
	}
	if raw := params.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return q, &ValidationError{Field: "days", Reason: "must be an integer"}
		}
		q.Days = days
	}
	if raw := params.Get("animals"); raw != "" {
		animals, err := strconv.Atoi(raw)
		if err != nil {
			return q, &ValidationError{Field: "animals", Reason: "must be 1 or 2"}
		}
		q.Animals = animals
	}
	if raw := params.Get("now"); raw != "" {
		now, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, &ValidationError{Field: "now", Reason: "must be RFC3339"}
		}
		q.Now = now
	}
	return q, nil
}

// StatusFor maps the availability error taxonomy onto HTTP statuses. It
// returns 0 for errors outside the taxonomy.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfiguration):
		return http.StatusNotFound
	case errors.Is(err, ErrDataFetch):
		return http.StatusServiceUnavailable
	}
	return 0
}

// WriteError renders err with the status from StatusFor.
func WriteError(w http.ResponseWriter, err error) {
	switch status := StatusFor(err); status {
	case http.StatusBadRequest, http.StatusNotFound:
		http.Error(w, err.Error(), status)
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "5")
		http.Error(w, "availability temporarily unavailable, retry", status)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
