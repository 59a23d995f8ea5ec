// Package clinicdata reads the clinic reference collections from Postgres
// and exports retained booking history to S3.
package clinicdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/vetclinic-platform/internal/availability"
	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var storeTracer = otel.Tracer("vetclinic.internal.clinicdata")

// DB abstracts the pgx pool so tests can use pgxmock.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BookingLister is the slice of the booking repository the loader needs.
type BookingLister interface {
	ListRange(ctx context.Context, clinicID string, from, to caltime.Date) ([]bookings.Booking, error)
}

// Store loads clinic settings and availability snapshots.
type Store struct {
	db       DB
	bookings BookingLister
	cache    *clinic.Cache
	logger   *logging.Logger
}

// NewStore wires the loader. cache may be nil.
func NewStore(db DB, lister BookingLister, cache *clinic.Cache, logger *logging.Logger) *Store {
	if db == nil {
		panic("clinicdata: db required")
	}
	if lister == nil {
		panic("clinicdata: booking lister required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, bookings: lister, cache: cache, logger: logger}
}

// Clinic returns the clinic settings, read through the Redis cache.
func (s *Store) Clinic(ctx context.Context, clinicID string) (*clinic.Clinic, error) {
	if cached, ok, err := s.cache.Get(ctx, clinicID); err != nil {
		s.logger.Warn("clinic cache read failed", "clinic_id", clinicID, "error", err)
	} else if ok {
		return cached, nil
	}

	c, err := s.loadClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, c); err != nil {
		s.logger.Warn("clinic cache write failed", "clinic_id", clinicID, "error", err)
	}
	return c, nil
}

func (s *Store) loadClinic(ctx context.Context, clinicID string) (*clinic.Clinic, error) {
	var (
		c     clinic.Clinic
		hours []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, timezone, slot_minutes, min_booking_delay_hours, hours
		FROM clinics
		WHERE id = $1
	`, clinicID).Scan(&c.ID, &c.Name, &c.Timezone, &c.SlotMinutes, &c.MinBookingDelayHours, &hours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, availability.ErrClinicNotFound
	}
	if err != nil {
		return nil, &availability.DataFetchError{Collection: "clinic", Err: err}
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &c.Hours); err != nil {
			return nil, fmt.Errorf("%w: clinic %s hours: %v", availability.ErrConfiguration, clinicID, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", availability.ErrConfiguration, err)
	}
	return &c, nil
}

// SaveClinic upserts the settings row and drops the cached copy.
func (s *Store) SaveClinic(ctx context.Context, c *clinic.Clinic) error {
	if err := c.Validate(); err != nil {
		return err
	}
	hours, err := json.Marshal(c.Hours)
	if err != nil {
		return fmt.Errorf("clinicdata: marshal hours: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO clinics (id, name, timezone, slot_minutes, min_booking_delay_hours, hours, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			slot_minutes = EXCLUDED.slot_minutes,
			min_booking_delay_hours = EXCLUDED.min_booking_delay_hours,
			hours = EXCLUDED.hours,
			updated_at = NOW()
	`, c.ID, c.Name, c.Timezone, c.SlotMinutes, c.MinBookingDelayHours, hours)
	if err != nil {
		return fmt.Errorf("clinicdata: save clinic: %w", err)
	}
	if err := s.cache.Invalidate(ctx, c.ID); err != nil {
		s.logger.Warn("clinic cache invalidate failed", "clinic_id", c.ID, "error", err)
	}
	return nil
}

// LoadSnapshot reads every collection the engine needs for [from, to] with
// one query each. Any collection failing fails the whole load; a single bad
// row is logged and left out.
func (s *Store) LoadSnapshot(ctx context.Context, clinicID string, from, to caltime.Date) (*availability.Snapshot, error) {
	ctx, span := storeTracer.Start(ctx, "clinicdata.load_snapshot")
	defer span.End()
	span.SetAttributes(
		attribute.String("vetclinic.clinic_id", clinicID),
		attribute.String("vetclinic.from", from.String()),
		attribute.String("vetclinic.to", to.String()),
	)

	c, err := s.Clinic(ctx, clinicID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	snap := &availability.Snapshot{Clinic: c}

	if snap.Practitioners, err = s.practitioners(ctx, clinicID); err != nil {
		return nil, fetchFailed(span, "practitioners", err)
	}
	if snap.Schedules, err = s.schedules(ctx, clinicID); err != nil {
		return nil, fetchFailed(span, "weekly_schedules", err)
	}
	if snap.Absences, err = s.absences(ctx, clinicID, from, to); err != nil {
		return nil, fetchFailed(span, "absences", err)
	}
	if snap.Blocks, err = s.recurringBlocks(ctx, clinicID); err != nil {
		return nil, fetchFailed(span, "recurring_blocks", err)
	}
	if snap.Bookings, err = s.bookings.ListRange(ctx, clinicID, from, to); err != nil {
		return nil, fetchFailed(span, "bookings", err)
	}

	span.SetAttributes(
		attribute.Int("vetclinic.practitioners", len(snap.Practitioners)),
		attribute.Int("vetclinic.bookings", len(snap.Bookings)),
	)
	return snap, nil
}

func fetchFailed(span trace.Span, collection string, err error) error {
	span.RecordError(err)
	return &availability.DataFetchError{Collection: collection, Err: err}
}

func (s *Store) practitioners(ctx context.Context, clinicID string) ([]clinic.Practitioner, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, active
		FROM practitioners
		WHERE clinic_id = $1
		ORDER BY id
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []clinic.Practitioner
	for rows.Next() {
		var p clinic.Practitioner
		if err := rows.Scan(&p.ID, &p.Name, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) schedules(ctx context.Context, clinicID string) ([]clinic.WeeklySchedule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT practitioner_id, weekday, working,
		       to_char(morning_start, 'HH24:MI'), to_char(morning_end, 'HH24:MI'),
		       to_char(afternoon_start, 'HH24:MI'), to_char(afternoon_end, 'HH24:MI')
		FROM weekly_schedules
		WHERE clinic_id = $1
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []clinic.WeeklySchedule
	for rows.Next() {
		var (
			ws                   clinic.WeeklySchedule
			weekday              int
			mStart, mEnd         *string
			aStart, aEnd         *string
			morningErr, afterErr error
		)
		if err := rows.Scan(&ws.PractitionerID, &weekday, &ws.Working, &mStart, &mEnd, &aStart, &aEnd); err != nil {
			return nil, err
		}
		ws.Morning, morningErr = optionalWindow(mStart, mEnd)
		ws.Afternoon, afterErr = optionalWindow(aStart, aEnd)
		if err := errors.Join(weekdayErr(weekday), morningErr, afterErr); err != nil {
			s.logger.Warn("skipping malformed schedule row", "clinic_id", clinicID, "practitioner_id", ws.PractitionerID, "error", err)
			continue
		}
		ws.Weekday = time.Weekday(weekday)
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (s *Store) absences(ctx context.Context, clinicID string, from, to caltime.Date) ([]clinic.Absence, error) {
	rows, err := s.db.Query(ctx, `
		SELECT practitioner_id, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), type
		FROM absences
		WHERE clinic_id = $1 AND start_date <= $3::date AND end_date >= $2::date
	`, clinicID, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []clinic.Absence
	for rows.Next() {
		var (
			a          clinic.Absence
			start, end string
		)
		if err := rows.Scan(&a.PractitionerID, &start, &end, &a.Type); err != nil {
			return nil, err
		}
		var startErr, endErr error
		a.Start, startErr = caltime.ParseDate(start)
		a.End, endErr = caltime.ParseDate(end)
		if err := errors.Join(startErr, endErr); err != nil {
			s.logger.Warn("skipping malformed absence row", "clinic_id", clinicID, "practitioner_id", a.PractitionerID, "error", err)
			continue
		}
		if a.End.Before(a.Start) {
			s.logger.Warn("skipping inverted absence", "clinic_id", clinicID, "practitioner_id", a.PractitionerID,
				"start", start, "end", end)
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) recurringBlocks(ctx context.Context, clinicID string) ([]clinic.RecurringBlock, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, practitioner_id, weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
		       to_char(active_from, 'YYYY-MM-DD'), to_char(active_until, 'YYYY-MM-DD'), active, reason
		FROM recurring_blocks
		WHERE clinic_id = $1
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []clinic.RecurringBlock
	for rows.Next() {
		var (
			b                     clinic.RecurringBlock
			practitionerID        *string
			weekday               int
			start, end            string
			activeFrom, activeTil *string
			reason                *string
		)
		if err := rows.Scan(&b.ID, &practitionerID, &weekday, &start, &end, &activeFrom, &activeTil, &b.Active, &reason); err != nil {
			return nil, err
		}
		if practitionerID != nil {
			b.PractitionerID = *practitionerID
		}
		if reason != nil {
			b.Reason = *reason
		}
		window, windowErr := caltime.NewWindow(start, end)
		var fromErr, untilErr error
		b.ActiveFrom, fromErr = optionalDate(activeFrom)
		b.ActiveUntil, untilErr = optionalDate(activeTil)
		if err := errors.Join(weekdayErr(weekday), windowErr, fromErr, untilErr); err != nil {
			s.logger.Warn("skipping malformed recurring block", "clinic_id", clinicID, "block_id", b.ID, "error", err)
			continue
		}
		b.Weekday = time.Weekday(weekday)
		b.Window = window
		out = append(out, b)
	}
	return out, rows.Err()
}

func weekdayErr(wd int) error {
	if wd < 0 || wd > 6 {
		return fmt.Errorf("weekday %d out of range", wd)
	}
	return nil
}

// optionalWindow treats a pair of NULLs as "no window". Half-set pairs are malformed.
func optionalWindow(start, end *string) (*caltime.Window, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	if start == nil || end == nil {
		return nil, errors.New("window has only one bound")
	}
	w, err := caltime.NewWindow(*start, *end)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func optionalDate(s *string) (*caltime.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := caltime.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
