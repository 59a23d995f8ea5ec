// Package clinic holds the reference data the availability engine reads:
// clinic operating hours, practitioners, their weekly schedules, absences and
// recurring blackout windows.
package clinic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
)

// DayHours represents the operating hours for a single weekday.
// Open=false means the clinic is closed that day.
type DayHours struct {
	Open      bool            `json:"open"`
	Morning   *caltime.Window `json:"morning,omitempty"`
	Afternoon *caltime.Window `json:"afternoon,omitempty"`
}

// Windows returns the configured windows in day order.
func (h DayHours) Windows() []caltime.Window {
	return collectWindows(h.Morning, h.Afternoon)
}

// Contains reports whether c falls inside the morning or afternoon window.
func (h DayHours) Contains(c caltime.Clock) bool {
	for _, w := range h.Windows() {
		if w.Contains(c) {
			return true
		}
	}
	return false
}

// Clinic holds clinic-level scheduling configuration.
type Clinic struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"` // e.g., "Europe/Paris"
	// Hours is indexed by weekday, 0 = Sunday.
	Hours                caltime.WeekTable[DayHours] `json:"hours"`
	SlotMinutes          int                         `json:"slot_minutes"`
	MinBookingDelayHours int                         `json:"min_booking_delay_hours"`
}

var (
	// ErrNotFound is returned by stores when a clinic has no settings row.
	ErrNotFound = errors.New("clinic not found")
	// ErrInvalidSlotDuration is returned for a non-positive slot length.
	ErrInvalidSlotDuration = errors.New("clinic: slot duration must be positive")
	// ErrInvalidDelay is returned for a negative minimum booking delay.
	ErrInvalidDelay = errors.New("clinic: minimum booking delay cannot be negative")
)

// DefaultClinic returns a weekday 09:00-12:00 / 14:00-18:00 clinic with
// 30-minute slots. Used when onboarding a clinic without explicit hours.
func DefaultClinic(id string) *Clinic {
	c := &Clinic{
		ID:                   id,
		Name:                 "Clinic",
		Timezone:             "UTC",
		SlotMinutes:          30,
		MinBookingDelayHours: 2,
	}
	morning := caltime.MustWindow("09:00", "12:00")
	afternoon := caltime.MustWindow("14:00", "18:00")
	for wd := time.Monday; wd <= time.Friday; wd++ {
		m, a := morning, afternoon
		c.Hours.Set(wd, DayHours{Open: true, Morning: &m, Afternoon: &a})
	}
	return c
}

// Validate checks the settings the engine depends on.
func (c *Clinic) Validate() error {
	if c == nil {
		return errors.New("clinic: nil clinic")
	}
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("clinic: id required")
	}
	if c.SlotMinutes <= 0 {
		return ErrInvalidSlotDuration
	}
	if c.MinBookingDelayHours < 0 {
		return ErrInvalidDelay
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("clinic: timezone %q: %w", c.Timezone, err)
		}
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		h := c.Hours.Get(wd)
		for _, w := range []*caltime.Window{h.Morning, h.Afternoon} {
			if w != nil && !w.Valid() {
				return fmt.Errorf("clinic: %s window %s is empty", caltime.WeekdayName(wd), w)
			}
		}
	}
	return nil
}

// Location returns the clinic's time zone, falling back to UTC.
func (c *Clinic) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HoursFor returns the operating hours for weekday wd.
func (c *Clinic) HoursFor(wd time.Weekday) DayHours {
	return c.Hours.Get(wd)
}

// IsOpenOn reports whether the clinic operates on the given weekday.
func (c *Clinic) IsOpenOn(wd time.Weekday) bool {
	h := c.Hours.Get(wd)
	return h.Open && len(h.Windows()) > 0
}

// IsOpenAt checks if the clinic is open at the given instant.
func (c *Clinic) IsOpenAt(t time.Time) bool {
	local := t.In(c.Location())
	if !c.IsOpenOn(local.Weekday()) {
		return false
	}
	return c.Hours.Get(local.Weekday()).Contains(caltime.ClockOf(local))
}

// MinimumDelay returns the minimum booking lead time.
func (c *Clinic) MinimumDelay() time.Duration {
	return time.Duration(c.MinBookingDelayHours) * time.Hour
}

func collectWindows(ws ...*caltime.Window) []caltime.Window {
	out := make([]caltime.Window, 0, len(ws))
	for _, w := range ws {
		if w != nil && w.Valid() {
			out = append(out, *w)
		}
	}
	return out
}
