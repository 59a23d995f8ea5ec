package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// SlotTakenMessage is shown to clients who lose the write race.
const SlotTakenMessage = "this slot was just taken, please choose another"

// Writer is the write side the handler depends on.
type Writer interface {
	Book(ctx context.Context, req BookRequest) ([]Booking, error)
	Block(ctx context.Context, req BlockRequest) ([]Booking, error)
	Cancel(ctx context.Context, clinicID string, id uuid.UUID) error
}

// Handler serves the booking and block endpoints.
type Handler struct {
	svc    Writer
	logger *logging.Logger
	// statusFor classifies errors raised outside this package, such as
	// availability lookups. It returns 0 when it does not recognise err.
	statusFor func(error) int
}

func NewHandler(svc Writer, logger *logging.Logger, statusFor func(error) int) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger, statusFor: statusFor}
}

// BookingsResponse wraps the rows written for one request.
type BookingsResponse struct {
	Bookings []Booking `json:"bookings"`
}

// CreateBooking handles POST /clinics/{clinicID}/bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.ClinicID = chi.URLParam(r, "clinicID")

	rows, err := h.svc.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "failed to create booking", req.ClinicID)
		return
	}
	writeJSON(w, http.StatusCreated, BookingsResponse{Bookings: rows})
}

// CreateBlock handles POST /clinics/{clinicID}/blocks.
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.ClinicID = chi.URLParam(r, "clinicID")

	rows, err := h.svc.Block(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "failed to create block", req.ClinicID)
		return
	}
	writeJSON(w, http.StatusCreated, BookingsResponse{Bookings: rows})
}

// CancelBooking handles DELETE /clinics/{clinicID}/bookings/{bookingID}.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}
	if err := h.svc.Cancel(r.Context(), clinicID, id); err != nil {
		h.writeError(w, err, "failed to cancel booking", clinicID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg, clinicID string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrSlotUnavailable):
		http.Error(w, SlotTakenMessage, http.StatusConflict)
	case errors.Is(err, ErrBookingNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	default:
		if h.statusFor != nil {
			if status := h.statusFor(err); status != 0 {
				if status == http.StatusServiceUnavailable {
					w.Header().Set("Retry-After", "5")
				}
				http.Error(w, http.StatusText(status), status)
				return
			}
		}
		h.logger.Error(msg, "clinic_id", clinicID, "error", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
