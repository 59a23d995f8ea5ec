package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// SettingsStore reads and writes clinic settings.
type SettingsStore interface {
	Clinic(ctx context.Context, clinicID string) (*Clinic, error)
	SaveClinic(ctx context.Context, c *Clinic) error
}

// Handler provides HTTP endpoints for clinic settings management.
type Handler struct {
	store  SettingsStore
	logger *logging.Logger
}

// NewHandler creates a new clinic settings HTTP handler.
func NewHandler(store SettingsStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Routes returns a chi router with clinic admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{clinicID}/config", h.GetConfig)
	r.Put("/{clinicID}/config", h.UpdateConfig)
	return r
}

// GetConfig returns the clinic settings.
// GET /admin/clinics/{clinicID}/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	c, err := h.store.Clinic(r.Context(), clinicID)
	if err != nil {
		h.writeLookupError(w, clinicID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c); err != nil {
		h.logger.Error("failed to encode clinic settings", "clinic_id", clinicID, "error", err)
	}
}

// UpdateConfigRequest is the request body for updating clinic settings.
// Omitted fields keep their current value.
type UpdateConfigRequest struct {
	Name                 string                       `json:"name,omitempty"`
	Timezone             string                       `json:"timezone,omitempty"`
	Hours                *caltime.WeekTable[DayHours] `json:"hours,omitempty"`
	SlotMinutes          *int                         `json:"slot_minutes,omitempty"`
	MinBookingDelayHours *int                         `json:"min_booking_delay_hours,omitempty"`
}

// UpdateConfig applies a partial update. A clinic without settings starts
// from DefaultClinic.
// PUT /admin/clinics/{clinicID}/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if clinicID == "" {
		http.Error(w, `{"error": "clinic_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	c, err := h.store.Clinic(r.Context(), clinicID)
	if errors.Is(err, ErrNotFound) {
		c, err = DefaultClinic(clinicID), nil
	}
	if err != nil {
		h.writeLookupError(w, clinicID, err)
		return
	}

	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Timezone != "" {
		c.Timezone = req.Timezone
	}
	if req.Hours != nil {
		c.Hours = *req.Hours
	}
	if req.SlotMinutes != nil {
		c.SlotMinutes = *req.SlotMinutes
	}
	if req.MinBookingDelayHours != nil {
		c.MinBookingDelayHours = *req.MinBookingDelayHours
	}
	if err := c.Validate(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	if err := h.store.SaveClinic(r.Context(), c); err != nil {
		h.logger.Error("failed to save clinic settings", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "failed to save config"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("clinic settings updated", "clinic_id", clinicID, "name", c.Name)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c); err != nil {
		h.logger.Error("failed to encode clinic settings", "clinic_id", clinicID, "error", err)
	}
}

func (h *Handler) writeLookupError(w http.ResponseWriter, clinicID string, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, `{"error": "clinic not found"}`, http.StatusNotFound)
		return
	}
	h.logger.Error("failed to get clinic settings", "clinic_id", clinicID, "error", err)
	http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
}
