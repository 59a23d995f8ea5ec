// Package planning builds the staff planning board: one lane per practitioner
// plus a shared lane for bookings that cannot be placed.
package planning

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vetclinic-platform/internal/availability"
	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var planningTracer = otel.Tracer("vetclinic.internal.planning")

// FallbackLane collects unassigned bookings and those whose practitioner is
// not on the current roster.
const FallbackLane = "unassigned"

const fallbackLaneName = "Unassigned"

// AssignLane returns the roster lane for b, or "" for the fallback lane.
// known is false when b names a practitioner missing from roster.
func AssignLane(b bookings.Booking, roster []clinic.Practitioner) (laneID string, known bool) {
	if b.PractitionerID == "" {
		return "", true
	}
	for _, p := range roster {
		if p.ID == b.PractitionerID {
			return p.ID, true
		}
	}
	return "", false
}

// Lane is one column of the board.
type Lane struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Fallback bool               `json:"fallback,omitempty"`
	Bookings []bookings.Booking `json:"bookings"`
}

// Board is the planning view for one clinic day.
type Board struct {
	ClinicID string       `json:"clinic_id"`
	Date     caltime.Date `json:"date"`
	Lanes    []Lane       `json:"lanes"`
	// UnknownPractitioners lists ids found on bookings but not on the roster.
	UnknownPractitioners []string `json:"unknown_practitioners,omitempty"`
}

// Lane returns the lane with the given id.
func (b *Board) Lane(id string) (Lane, bool) {
	for _, l := range b.Lanes {
		if l.ID == id {
			return l, true
		}
	}
	return Lane{}, false
}

// Unassigned returns the fallback lane.
func (b *Board) Unassigned() (Lane, bool) {
	for _, l := range b.Lanes {
		if l.Fallback {
			return l, true
		}
	}
	return Lane{}, false
}

// Builder assembles boards from the same snapshot the availability engine reads.
type Builder struct {
	loader availability.SnapshotLoader
	logger *logging.Logger
}

func NewBuilder(loader availability.SnapshotLoader, logger *logging.Logger) *Builder {
	if loader == nil {
		panic("planning: snapshot loader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{loader: loader, logger: logger}
}

// Build returns lanes in roster order with the fallback lane last. Bookings in
// each lane are sorted by start time.
func (b *Builder) Build(ctx context.Context, clinicID string, d caltime.Date) (*Board, error) {
	ctx, span := planningTracer.Start(ctx, "planning.build_board")
	defer span.End()
	span.SetAttributes(
		attribute.String("vetclinic.clinic_id", clinicID),
		attribute.String("vetclinic.date", d.String()),
	)

	if clinicID == "" {
		return nil, &availability.ValidationError{Field: "clinic_id", Reason: "required"}
	}
	if d.IsZero() {
		return nil, &availability.ValidationError{Field: "date", Reason: "required"}
	}

	snap, err := b.loader.LoadSnapshot(ctx, clinicID, d, d)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	roster := snap.Roster()

	board := &Board{ClinicID: clinicID, Date: d}
	index := make(map[string]int, len(roster))
	for _, p := range roster {
		index[p.ID] = len(board.Lanes)
		board.Lanes = append(board.Lanes, Lane{ID: p.ID, Name: p.Name, Bookings: []bookings.Booking{}})
	}
	fallback := len(board.Lanes)
	board.Lanes = append(board.Lanes, Lane{ID: FallbackLane, Name: fallbackLaneName, Fallback: true, Bookings: []bookings.Booking{}})

	unknown := map[string]bool{}
	for _, bk := range snap.Bookings {
		if bk.Date != d || bk.Status == bookings.StatusCancelled {
			continue
		}
		laneID, known := AssignLane(bk, roster)
		if !known && !unknown[bk.PractitionerID] {
			unknown[bk.PractitionerID] = true
			board.UnknownPractitioners = append(board.UnknownPractitioners, bk.PractitionerID)
			b.logger.Warn("booking references unknown practitioner", "clinic_id", clinicID,
				"practitioner_id", bk.PractitionerID, "booking_id", bk.ID, "date", d.String())
		}
		i := fallback
		if laneID != "" {
			i = index[laneID]
		}
		board.Lanes[i].Bookings = append(board.Lanes[i].Bookings, bk)
	}

	for i := range board.Lanes {
		rows := board.Lanes[i].Bookings
		sort.SliceStable(rows, func(a, c int) bool {
			if rows[a].Start != rows[c].Start {
				return rows[a].Start < rows[c].Start
			}
			return rows[a].ID.String() < rows[c].ID.String()
		})
	}
	sort.Strings(board.UnknownPractitioners)

	span.SetAttributes(attribute.Int("vetclinic.bookings", len(snap.Bookings)))
	return board, nil
}
