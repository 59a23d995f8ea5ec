package availability

import (
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
)

// DayGrid holds the candidate start times of one open day.
type DayGrid struct {
	Date  caltime.Date
	Times []caltime.Clock
}

// Has reports whether t is a candidate on this day.
func (g DayGrid) Has(t caltime.Clock) bool {
	for _, c := range g.Times {
		if c == t {
			return true
		}
		if c > t {
			return false
		}
	}
	return false
}

// Horizon returns the dates [today, today+days) where today is now's date in loc.
func Horizon(now time.Time, loc *time.Location, days int) []caltime.Date {
	if loc == nil {
		loc = time.UTC
	}
	today := caltime.DateOf(now.In(loc))
	out := make([]caltime.Date, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, today.AddDays(i))
	}
	return out
}

// Generate expands each date into its slot grid. Closed days are skipped.
// Each window is stepped independently; unless allowOverrun is set, a slot
// whose end would pass the window end is not emitted.
func Generate(dates []caltime.Date, c *clinic.Clinic, allowOverrun bool) []DayGrid {
	out := make([]DayGrid, 0, len(dates))
	for _, d := range dates {
		wd := d.Weekday()
		if !c.IsOpenOn(wd) {
			continue
		}
		var times []caltime.Clock
		for _, w := range c.HoursFor(wd).Windows() {
			times = append(times, windowSlots(w, c.SlotMinutes, allowOverrun)...)
		}
		if len(times) == 0 {
			continue
		}
		out = append(out, DayGrid{Date: d, Times: times})
	}
	return out
}

func windowSlots(w caltime.Window, step int, allowOverrun bool) []caltime.Clock {
	if step <= 0 || !w.Valid() {
		return nil
	}
	var out []caltime.Clock
	for t := w.Start; t < w.End; t = t.Add(step) {
		if !allowOverrun && !w.Fits(t, step) {
			break
		}
		out = append(out, t)
	}
	return out
}
