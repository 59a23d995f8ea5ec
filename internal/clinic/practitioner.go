package clinic

import (
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
)

// Practitioner is a veterinarian who can be booked.
type Practitioner struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// WeeklySchedule is a practitioner's working pattern for one weekday.
type WeeklySchedule struct {
	PractitionerID string          `json:"practitioner_id"`
	Weekday        time.Weekday    `json:"weekday"`
	Working        bool            `json:"working"`
	Morning        *caltime.Window `json:"morning,omitempty"`
	Afternoon      *caltime.Window `json:"afternoon,omitempty"`
}

// Contains reports whether c falls in one of the declared windows.
// A non-working day contains nothing.
func (s WeeklySchedule) Contains(c caltime.Clock) bool {
	if !s.Working {
		return false
	}
	for _, w := range collectWindows(s.Morning, s.Afternoon) {
		if w.Contains(c) {
			return true
		}
	}
	return false
}

// Absence types.
const (
	AbsenceVacation = "vacation"
	AbsenceSick     = "sick_leave"
	AbsenceTraining = "training"
	AbsenceOther    = "other"
)

// Absence removes a practitioner for every day in [Start, End].
type Absence struct {
	PractitionerID string       `json:"practitioner_id"`
	Start          caltime.Date `json:"start_date"`
	End            caltime.Date `json:"end_date"`
	Type           string       `json:"type"`
}

// Covers reports whether d lies in the inclusive range.
func (a Absence) Covers(d caltime.Date) bool {
	return d.Between(a.Start, a.End)
}

// RecurringBlock is a weekly blackout such as a staff meeting.
// An empty PractitionerID applies clinic-wide.
type RecurringBlock struct {
	ID             string         `json:"id"`
	PractitionerID string         `json:"practitioner_id,omitempty"`
	Weekday        time.Weekday   `json:"weekday"`
	Window         caltime.Window `json:"window"`
	ActiveFrom     *caltime.Date  `json:"active_from,omitempty"`
	ActiveUntil    *caltime.Date  `json:"active_until,omitempty"`
	Active         bool           `json:"active"`
	Reason         string         `json:"reason,omitempty"`
}

// ClinicWide reports whether the block applies to every practitioner.
func (b RecurringBlock) ClinicWide() bool {
	return b.PractitionerID == ""
}

// AppliesOn reports whether the block is in force for the practitioner on d.
func (b RecurringBlock) AppliesOn(practitionerID string, d caltime.Date) bool {
	if !b.Active || d.Weekday() != b.Weekday {
		return false
	}
	if !b.ClinicWide() && b.PractitionerID != practitionerID {
		return false
	}
	if b.ActiveFrom != nil && d.Before(*b.ActiveFrom) {
		return false
	}
	if b.ActiveUntil != nil && d.After(*b.ActiveUntil) {
		return false
	}
	return true
}

// Blocks reports whether the block removes clock c on day d.
func (b RecurringBlock) Blocks(practitionerID string, d caltime.Date, c caltime.Clock) bool {
	return b.AppliesOn(practitionerID, d) && b.Window.Contains(c)
}
