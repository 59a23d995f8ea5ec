// Package caltime provides the calendar primitives shared by the scheduling
// packages: civil dates, times of day on a minute grid, half-open windows and
// weekday-indexed tables.
package caltime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout   = "2006-01-02"
	minutesInDay = 24 * 60
)

// Date is a calendar day without time-of-day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a zero-padded "YYYY-MM-DD" literal.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("caltime: invalid date %q", s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.time().AddDate(0, 0, n))
}

// Weekday returns the day of the week, 0 = Sunday.
func (d Date) Weekday() time.Weekday {
	return d.time().Weekday()
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return d.time().Compare(o.time())
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Between reports whether d lies in the closed range [from, to].
func (d Date) Between(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

// DaysUntil returns the number of days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.time().Sub(d.time()).Hours() / 24)
}

// At returns the absolute instant of clock c on day d in loc.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, c.Minutes(), 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day expressed in minutes since midnight. 24:00 is a
// valid value so a window can close at midnight.
type Clock int

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock accepts "HH:MM" and "HH:MM:SS" (seconds are truncated).
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("caltime: invalid time %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("caltime: invalid time %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("caltime: invalid time %q", s)
		}
		nums[i] = n
	}
	hour, minute := nums[0], nums[1]
	if minute > 59 || (len(nums) == 3 && nums[2] > 59) {
		return 0, fmt.Errorf("caltime: invalid time %q", s)
	}
	if hour > 24 || (hour == 24 && (minute != 0 || (len(nums) == 3 && nums[2] != 0))) {
		return 0, fmt.Errorf("caltime: invalid time %q", s)
	}
	return NewClock(hour, minute), nil
}

// MustParseClock is ParseClock for literals known to be valid.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

func (c Clock) Minutes() int { return int(c) }

// Add returns c shifted by the given number of minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// Valid reports whether c is within [00:00, 24:00].
func (c Clock) Valid() bool {
	return c >= 0 && c <= minutesInDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Window is the half-open interval [Start, End).
type Window struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// NewWindow parses both bounds of a window.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e}
	if !w.Valid() {
		return Window{}, fmt.Errorf("caltime: window %s-%s is empty", start, end)
	}
	return w, nil
}

// MustWindow is NewWindow for literals known to be valid.
func MustWindow(start, end string) Window {
	w, err := NewWindow(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

// Valid reports whether the window is non-empty and inside the day.
func (w Window) Valid() bool {
	return w.Start.Valid() && w.End.Valid() && w.Start < w.End
}

// Contains reports whether c lies in [Start, End).
func (w Window) Contains(c Clock) bool {
	return c >= w.Start && c < w.End
}

// Fits reports whether a span of the given length starting at c ends no
// later than End.
func (w Window) Fits(c Clock, minutes int) bool {
	return w.Contains(c) && c.Add(minutes) <= w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// WeekTable is a fixed-size table indexed by weekday, 0 = Sunday.
type WeekTable[T any] [7]T

// Get returns the entry for wd.
func (t WeekTable[T]) Get(wd time.Weekday) T {
	return t[int(wd)%7]
}

// Set stores the entry for wd.
func (t *WeekTable[T]) Set(wd time.Weekday, v T) {
	t[int(wd)%7] = v
}

var weekdayNames = WeekTable[string]{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// WeekdayName returns the lower-case English day name.
func WeekdayName(wd time.Weekday) string {
	return weekdayNames.Get(wd)
}

// ParseWeekday accepts an integer 0-6 or an English day name.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("caltime: weekday %d out of range", n)
		}
		return time.Weekday(n), nil
	}
	for i, name := range weekdayNames {
		if name == s || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("caltime: unknown weekday %q", s)
}

// MarshalJSON renders the table as an object keyed by day name.
func (t WeekTable[T]) MarshalJSON() ([]byte, error) {
	out := make(map[string]T, 7)
	for i, v := range t {
		out[weekdayNames[i]] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts an object keyed by day name or number.
func (t *WeekTable[T]) UnmarshalJSON(b []byte) error {
	var raw map[string]T
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out WeekTable[T]
	for k, v := range raw {
		wd, err := ParseWeekday(k)
		if err != nil {
			return err
		}
		out.Set(wd, v)
	}
	*t = out
	return nil
}
