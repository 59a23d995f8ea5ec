package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// DB abstracts the pgx pool so tests can use pgxmock.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectColumns = `
	SELECT id, group_id, clinic_id, practitioner_id,
	       to_char(slot_date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	       duration_minutes, status, is_blocked, client_name, client_email, animal_name, reason, created_at
	FROM bookings`

// Repository provides persistence helpers for bookings.
type Repository struct {
	db     DB
	logger *logging.Logger
}

// NewRepository creates a repository backed by a pgx pool or mock.
func NewRepository(db DB, logger *logging.Logger) *Repository {
	if db == nil {
		panic("bookings: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Insert writes all rows in one transaction. A unique violation on any row
// rolls back the whole group and returns ErrSlotTaken.
func (r *Repository) Insert(ctx context.Context, rows []Booking) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range rows {
		b := &rows[i]
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, group_id, clinic_id, practitioner_id, slot_date, start_time, end_time, duration_minutes, status, is_blocked, client_name, client_email, animal_name, reason, created_at)
			VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::time, $8, $9, $10, $11, $12, $13, $14, $15)`,
			b.ID, b.GroupID, b.ClinicID, nullableString(b.PractitionerID),
			b.Date.String(), b.Start.String(), b.End.String(), b.DurationMinutes,
			string(b.Status), b.IsBlock(), b.ClientName, b.ClientEmail, b.AnimalName, b.Reason, b.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSlotTaken
			}
			return fmt.Errorf("bookings: insert %s %s: %w", b.Date, b.Start, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("bookings: commit: %w", err)
	}
	return nil
}

// ListRange returns non-cancelled rows for the clinic with from <= date <= to.
func (r *Repository) ListRange(ctx context.Context, clinicID string, from, to caltime.Date) ([]Booking, error) {
	rows, err := r.db.Query(ctx, selectColumns+`
		WHERE clinic_id = $1 AND slot_date BETWEEN $2::date AND $3::date AND status <> 'cancelled'
		ORDER BY slot_date, start_time, practitioner_id NULLS LAST`,
		clinicID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("bookings: list range: %w", err)
	}
	defer rows.Close()
	return r.scanBookings(rows)
}

// ListForDate returns the non-cancelled rows for a single day.
func (r *Repository) ListForDate(ctx context.Context, clinicID string, d caltime.Date) ([]Booking, error) {
	return r.ListRange(ctx, clinicID, d, d)
}

// Get loads one row scoped to the clinic.
func (r *Repository) Get(ctx context.Context, clinicID string, id uuid.UUID) (*Booking, error) {
	row := r.db.QueryRow(ctx, selectColumns+` WHERE clinic_id = $1 AND id = $2`, clinicID, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	return &b, nil
}

// Cancel marks every row of the booking's group as cancelled, freeing the
// cells for new bookings.
func (r *Repository) Cancel(ctx context.Context, clinicID string, id uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET status = 'cancelled'
		WHERE clinic_id = $1 AND status <> 'cancelled'
		  AND group_id = (SELECT group_id FROM bookings WHERE clinic_id = $1 AND id = $2)`,
		clinicID, id)
	if err != nil {
		return 0, fmt.Errorf("bookings: cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrBookingNotFound
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (Booking, error) {
	var (
		b                        Booking
		practitionerID           *string
		date, start, end, status string
		blocked                  bool
		clientEmail, reason      *string
	)
	if err := row.Scan(
		&b.ID, &b.GroupID, &b.ClinicID, &practitionerID,
		&date, &start, &end,
		&b.DurationMinutes, &status, &blocked, &b.ClientName, &clientEmail, &b.AnimalName, &reason, &b.CreatedAt,
	); err != nil {
		return Booking{}, err
	}
	if practitionerID != nil {
		b.PractitionerID = *practitionerID
	}
	if clientEmail != nil {
		b.ClientEmail = *clientEmail
	}
	if reason != nil {
		b.Reason = *reason
	}
	b.Kind = KindAppointment
	if blocked {
		b.Kind = KindBlock
	}
	var err error
	if b.Date, err = caltime.ParseDate(date); err != nil {
		return b, &malformedRowError{err: err}
	}
	if b.Start, err = caltime.ParseClock(start); err != nil {
		return b, &malformedRowError{err: err}
	}
	if b.End, err = caltime.ParseClock(end); err != nil {
		return b, &malformedRowError{err: err}
	}
	if b.Status, err = ParseStatus(status); err != nil {
		return b, &malformedRowError{err: err}
	}
	return b, nil
}

func (r *Repository) scanBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			var malformed *malformedRowError
			if errors.As(err, &malformed) {
				r.logger.Warn("skipping malformed booking row", "booking_id", b.ID, "error", malformed.err)
				continue
			}
			return nil, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate: %w", err)
	}
	return out, nil
}

type malformedRowError struct {
	err error
}

func (e *malformedRowError) Error() string { return e.err.Error() }

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
