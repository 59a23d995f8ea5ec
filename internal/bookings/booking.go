// Package bookings persists appointments and manual blocks and guards
// against double booking of a practitioner's grid cell.
package bookings

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
)

// Status is the lifecycle state of a booking row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// ParseStatus normalizes a stored status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("bookings: unknown status %q", s)
}

// Kind distinguishes client appointments from staff-entered blocks.
type Kind string

const (
	KindAppointment Kind = "appointment"
	KindBlock       Kind = "block"
)

// BlockedMarker fills the client and animal fields of a manual block so the
// planning board can render it without a client record.
const BlockedMarker = "[blocked]"

// Booking is one occupied grid cell. A two-animal appointment is stored as
// two rows sharing a GroupID.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	GroupID         uuid.UUID     `json:"group_id"`
	ClinicID        string        `json:"clinic_id"`
	PractitionerID  string        `json:"practitioner_id,omitempty"`
	Date            caltime.Date  `json:"date"`
	Start           caltime.Clock `json:"start"`
	End             caltime.Clock `json:"end"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          Status        `json:"status"`
	Kind            Kind          `json:"kind"`
	ClientName      string        `json:"client_name"`
	ClientEmail     string        `json:"client_email,omitempty"`
	AnimalName      string        `json:"animal_name"`
	Reason          string        `json:"reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// IsBlock reports whether the row is a manual block.
func (b Booking) IsBlock() bool {
	return b.Kind == KindBlock
}

// Occupying reports whether the row still holds its slot. Blocks occupy until
// they are cancelled; appointments occupy while pending, confirmed or completed.
func (b Booking) Occupying() bool {
	if b.IsBlock() {
		return b.Status != StatusCancelled
	}
	switch b.Status {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// Span returns the occupied interval. A missing or inverted end time falls
// back to start plus duration.
func (b Booking) Span() caltime.Window {
	end := b.End
	if end <= b.Start {
		end = b.Start.Add(b.DurationMinutes)
	}
	return caltime.Window{Start: b.Start, End: end}
}

// Occupies reports whether the booking removes the given practitioner's
// candidate slot at clock c on day d.
func (b Booking) Occupies(practitionerID string, d caltime.Date, c caltime.Clock) bool {
	if !b.Occupying() || b.PractitionerID == "" || b.PractitionerID != practitionerID {
		return false
	}
	return b.Date == d && b.Span().Contains(c)
}
