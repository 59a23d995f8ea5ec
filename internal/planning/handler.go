package planning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/availability"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// BoardSource is what the board handler reads from.
type BoardSource interface {
	Build(ctx context.Context, clinicID string, d caltime.Date) (*Board, error)
}

// Handler serves the planning board.
type Handler struct {
	boards BoardSource
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(boards BoardSource, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{boards: boards, logger: logger, now: time.Now}
}

// GetBoard returns the board for one day.
// GET /clinics/{clinicID}/board?date=YYYY-MM-DD (defaults to today, UTC)
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")

	d := caltime.DateOf(h.now().UTC())
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := caltime.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid date, use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		d = parsed
	}

	board, err := h.boards.Build(r.Context(), clinicID, d)
	if err != nil {
		if !errors.Is(err, availability.ErrInvalidInput) {
			h.logger.Error("failed to build planning board", "clinic_id", clinicID, "date", d.String(), "error", err)
		}
		availability.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(board); err != nil {
		h.logger.Error("failed to encode planning board", "clinic_id", clinicID, "error", err)
	}
}
