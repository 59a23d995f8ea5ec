package availability

import "github.com/wolfman30/vetclinic-platform/internal/caltime"

// practitionerSlots is the finished per-practitioner evaluation of one day.
type practitionerSlots struct {
	practitionerID string
	free           map[caltime.Clock]bool
}

// aggregate merges per-practitioner results into one entry per grid time.
// It must only be called once every practitioner of the day is evaluated.
// Practitioner ids keep the order of results; empty entries are dropped.
func aggregate(grid DayGrid, results []practitionerSlots) DayAvailability {
	day := DayAvailability{Date: grid.Date}
	for _, t := range grid.Times {
		var ids []string
		for _, r := range results {
			if r.free[t] {
				ids = append(ids, r.practitionerID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		day.Slots = append(day.Slots, Slot{Time: t, PractitionerIDs: ids})
	}
	return day
}
