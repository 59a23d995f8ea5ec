package availability

import (
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
)

// SafetyMargin is added to the clinic's minimum booking delay.
const SafetyMargin = 15 * time.Minute

// SchedulePolicy decides what a missing WeeklySchedule row means.
type SchedulePolicy string

const (
	// PolicyClinicHours lets the practitioner work the clinic's hours.
	PolicyClinicHours SchedulePolicy = "clinic_hours"
	// PolicyOff treats the practitioner as not working that weekday.
	PolicyOff SchedulePolicy = "off"
)

// ParseSchedulePolicy falls back to PolicyClinicHours for unknown values.
func ParseSchedulePolicy(s string) SchedulePolicy {
	if SchedulePolicy(s) == PolicyOff {
		return PolicyOff
	}
	return PolicyClinicHours
}

// candidate is one (date, time, practitioner) triple under evaluation.
type candidate struct {
	date           caltime.Date
	weekday        time.Weekday
	time           caltime.Clock
	practitionerID string
}

type filter struct {
	name string
	keep func(candidate) bool
}

type bookingKey struct {
	practitionerID string
	date           caltime.Date
}

// evaluator indexes a snapshot once and runs the five filters in order.
type evaluator struct {
	loc       *time.Location
	threshold time.Time
	policy    SchedulePolicy

	absences  map[string][]clinic.Absence
	schedules map[string]*caltime.WeekTable[*clinic.WeeklySchedule]
	blocks    []clinic.RecurringBlock
	bookings  map[bookingKey][]bookings.Booking

	filters []filter
}

func newEvaluator(snap *Snapshot, now time.Time, policy SchedulePolicy) *evaluator {
	e := &evaluator{
		loc:       snap.Clinic.Location(),
		threshold: now.Add(snap.Clinic.MinimumDelay() + SafetyMargin),
		policy:    policy,
		absences:  make(map[string][]clinic.Absence),
		schedules: make(map[string]*caltime.WeekTable[*clinic.WeeklySchedule]),
		bookings:  make(map[bookingKey][]bookings.Booking),
	}

	for _, a := range snap.Absences {
		e.absences[a.PractitionerID] = append(e.absences[a.PractitionerID], a)
	}
	for i := range snap.Schedules {
		s := &snap.Schedules[i]
		table, ok := e.schedules[s.PractitionerID]
		if !ok {
			table = &caltime.WeekTable[*clinic.WeeklySchedule]{}
			e.schedules[s.PractitionerID] = table
		}
		table.Set(s.Weekday, s)
	}
	for _, b := range snap.Blocks {
		if b.Active {
			e.blocks = append(e.blocks, b)
		}
	}
	for _, b := range snap.Bookings {
		if !b.Occupying() || b.PractitionerID == "" {
			continue
		}
		k := bookingKey{practitionerID: b.PractitionerID, date: b.Date}
		e.bookings[k] = append(e.bookings[k], b)
	}

	e.filters = []filter{
		{name: "absence", keep: e.absenceFilter},
		{name: "schedule", keep: e.scheduleFilter},
		{name: "recurring_block", keep: e.blockFilter},
		{name: "booking_conflict", keep: e.conflictFilter},
		{name: "minimum_delay", keep: e.delayFilter},
	}
	return e
}

// available runs the pipeline; the first failing filter drops the candidate.
func (e *evaluator) available(c candidate) bool {
	_, ok := e.rejectedBy(c)
	return !ok
}

// rejectedBy names the first filter that drops c.
func (e *evaluator) rejectedBy(c candidate) (string, bool) {
	for _, f := range e.filters {
		if !f.keep(c) {
			return f.name, true
		}
	}
	return "", false
}

func (e *evaluator) absenceFilter(c candidate) bool {
	for _, a := range e.absences[c.practitionerID] {
		if a.Covers(c.date) {
			return false
		}
	}
	return true
}

func (e *evaluator) scheduleFilter(c candidate) bool {
	table, ok := e.schedules[c.practitionerID]
	var row *clinic.WeeklySchedule
	if ok {
		row = table.Get(c.weekday)
	}
	if row == nil {
		// The candidate already lies in a clinic window.
		return e.policy != PolicyOff
	}
	return row.Contains(c.time)
}

func (e *evaluator) blockFilter(c candidate) bool {
	for _, b := range e.blocks {
		if b.Blocks(c.practitionerID, c.date, c.time) {
			return false
		}
	}
	return true
}

func (e *evaluator) conflictFilter(c candidate) bool {
	for _, b := range e.bookings[bookingKey{practitionerID: c.practitionerID, date: c.date}] {
		if b.Occupies(c.practitionerID, c.date, c.time) {
			return false
		}
	}
	return true
}

func (e *evaluator) delayFilter(c candidate) bool {
	return !c.date.At(c.time, e.loc).Before(e.threshold)
}
