package availability

import (
	"sort"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
)

// Snapshot is the point-in-time reference data for one clinic and horizon.
// It is read-only once built; the engine never mutates it.
type Snapshot struct {
	Clinic        *clinic.Clinic
	Practitioners []clinic.Practitioner
	Schedules     []clinic.WeeklySchedule
	Absences      []clinic.Absence
	Blocks        []clinic.RecurringBlock
	Bookings      []bookings.Booking
}

// Roster returns the active practitioners sorted by id.
func (s *Snapshot) Roster() []clinic.Practitioner {
	out := make([]clinic.Practitioner, 0, len(s.Practitioners))
	for _, p := range s.Practitioners {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Query describes one availability request.
type Query struct {
	ClinicID string
	Days     int
	// PractitionerID is empty for "no preference".
	PractitionerID string
	// Animals is 1 or 2. Two animals need two contiguous cells.
	Animals int
	Now     time.Time
}

// TwoAnimals reports whether the pairing rule applies.
func (q Query) TwoAnimals() bool {
	return q.Animals == 2
}

func (q Query) validate(maxDays int) error {
	if q.ClinicID == "" {
		return &ValidationError{Field: "clinic_id", Reason: "required"}
	}
	if q.Days < 1 {
		return &ValidationError{Field: "days", Reason: "must be at least 1"}
	}
	if maxDays > 0 && q.Days > maxDays {
		return &ValidationError{Field: "days", Reason: "exceeds maximum horizon"}
	}
	if q.Animals != 1 && q.Animals != 2 {
		return &ValidationError{Field: "animals", Reason: "must be 1 or 2"}
	}
	if q.Now.IsZero() {
		return &ValidationError{Field: "now", Reason: "required"}
	}
	return nil
}

// Slot is a publishable (date, time) with the practitioners still free.
type Slot struct {
	Time            caltime.Clock `json:"time"`
	PractitionerIDs []string      `json:"practitioner_ids"`
}

// DayAvailability groups the slots of one date in time order.
type DayAvailability struct {
	Date  caltime.Date `json:"date"`
	Slots []Slot       `json:"slots"`
}

// Result is the ordered per-day output. Days without slots are omitted.
type Result struct {
	ClinicID string            `json:"clinic_id"`
	Days     []DayAvailability `json:"days"`
}

// SlotCount returns the number of published (date, time) entries.
func (r Result) SlotCount() int {
	n := 0
	for _, d := range r.Days {
		n += len(d.Slots)
	}
	return n
}

// Find returns the slot at (date, time), if published.
func (r Result) Find(d caltime.Date, t caltime.Clock) (Slot, bool) {
	for _, day := range r.Days {
		if day.Date != d {
			continue
		}
		for _, s := range day.Slots {
			if s.Time == t {
				return s, true
			}
		}
	}
	return Slot{}, false
}
