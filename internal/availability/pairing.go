package availability

import "github.com/wolfman30/vetclinic-platform/internal/caltime"

// freeTimes evaluates every grid time of one day for one practitioner.
func (e *evaluator) freeTimes(grid DayGrid, practitionerID string) map[caltime.Clock]bool {
	free := make(map[caltime.Clock]bool, len(grid.Times))
	wd := grid.Date.Weekday()
	for _, t := range grid.Times {
		c := candidate{date: grid.Date, weekday: wd, time: t, practitionerID: practitionerID}
		if e.available(c) {
			free[t] = true
		}
	}
	return free
}

// pair keeps only times whose successor cell, t + slotMinutes, is also a grid
// time and free for the same practitioner. The input map is not modified.
func pair(grid DayGrid, free map[caltime.Clock]bool, slotMinutes int) map[caltime.Clock]bool {
	paired := make(map[caltime.Clock]bool, len(free))
	for _, t := range grid.Times {
		if !free[t] {
			continue
		}
		next := t.Add(slotMinutes)
		if grid.Has(next) && free[next] {
			paired[t] = true
		}
	}
	return paired
}
