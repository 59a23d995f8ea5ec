// Package availability computes which (date, time, practitioner) cells of a
// clinic can still be booked over a horizon of days.
//
// The computation is a pure function of a Snapshot and a Query. It keeps no
// state between calls, so one Engine can serve concurrent requests for any
// number of clinics. The result is advisory: the booking write path enforces
// the real non-overlap guarantee with a unique index.
package availability

import (
	"fmt"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
)

// Options tunes the resolved open questions of the engine.
type Options struct {
	MissingSchedule SchedulePolicy
	AllowOverrun    bool
}

// DefaultOptions falls back to clinic hours and suppresses overrunning slots.
func DefaultOptions() Options {
	return Options{MissingSchedule: PolicyClinicHours}
}

// Engine runs the generator, filter pipeline, pairing resolver and aggregator.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	if opts.MissingSchedule == "" {
		opts.MissingSchedule = PolicyClinicHours
	}
	return &Engine{opts: opts}
}

// Compute returns the publishable slots for q. The horizon cap is enforced
// by Service, not here.
func (e *Engine) Compute(snap *Snapshot, q Query) (Result, error) {
	if err := q.validate(0); err != nil {
		return Result{}, err
	}
	roster, err := e.prepare(snap, q.PractitionerID)
	if err != nil {
		return Result{}, err
	}

	c := snap.Clinic
	grids := Generate(Horizon(q.Now, c.Location(), q.Days), c, e.opts.AllowOverrun)
	ev := newEvaluator(snap, q.Now, e.opts.MissingSchedule)

	res := Result{ClinicID: c.ID, Days: []DayAvailability{}}
	for _, grid := range grids {
		results := make([]practitionerSlots, 0, len(roster))
		for _, p := range roster {
			free := ev.freeTimes(grid, p.ID)
			if q.TwoAnimals() {
				free = pair(grid, free, c.SlotMinutes)
			}
			results = append(results, practitionerSlots{practitionerID: p.ID, free: free})
		}
		day := aggregate(grid, results)
		if len(day.Slots) > 0 {
			res.Days = append(res.Days, day)
		}
	}
	return res, nil
}

// Check is the single-cell form of Compute used before a booking write.
// It returns the name of the rule that refused the cell, or "" when free.
func (e *Engine) Check(snap *Snapshot, practitionerID string, d caltime.Date, t caltime.Clock, animals int, now time.Time) (string, error) {
	if practitionerID == "" {
		return "", &ValidationError{Field: "practitioner_id", Reason: "required"}
	}
	if _, err := e.prepare(snap, practitionerID); err != nil {
		return "", err
	}
	c := snap.Clinic
	grids := Generate([]caltime.Date{d}, c, e.opts.AllowOverrun)
	if len(grids) == 0 || !grids[0].Has(t) {
		return "off_grid", nil
	}
	grid := grids[0]
	ev := newEvaluator(snap, now, e.opts.MissingSchedule)

	cells := []caltime.Clock{t}
	if animals == 2 {
		next := t.Add(c.SlotMinutes)
		if !grid.Has(next) {
			return "pairing", nil
		}
		cells = append(cells, next)
	}
	for _, cell := range cells {
		cand := candidate{date: d, weekday: d.Weekday(), time: cell, practitionerID: practitionerID}
		if name, rejected := ev.rejectedBy(cand); rejected {
			return name, nil
		}
	}
	return "", nil
}

// prepare validates the snapshot and resolves the practitioners to evaluate.
func (e *Engine) prepare(snap *Snapshot, practitionerID string) ([]clinic.Practitioner, error) {
	if snap == nil || snap.Clinic == nil {
		return nil, ErrClinicNotFound
	}
	if err := snap.Clinic.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	roster := snap.Roster()
	if practitionerID == "" {
		return roster, nil
	}
	for _, p := range roster {
		if p.ID == practitionerID {
			return []clinic.Practitioner{p}, nil
		}
	}
	return nil, ErrPractitionerNotFound
}
