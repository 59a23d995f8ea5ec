package bookings

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSlotTaken means another writer claimed the cell first.
	ErrSlotTaken = errors.New("bookings: slot already taken")
	// ErrSlotUnavailable means the cell is not published by the availability engine.
	ErrSlotUnavailable = errors.New("bookings: slot not available")
	// ErrBookingNotFound is returned when a cancel targets an unknown or already cancelled row.
	ErrBookingNotFound = errors.New("bookings: booking not found")
	// ErrInvalidRequest wraps malformed booking or block requests.
	ErrInvalidRequest = errors.New("bookings: invalid request")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
