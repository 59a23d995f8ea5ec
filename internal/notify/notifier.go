// Package notify delivers booking confirmations to clients. Delivery is
// best-effort: callers log failures and never roll back a booking.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// BookingConfirmed is emitted once a booking has been committed.
type BookingConfirmed struct {
	BookingID      string `json:"booking_id"`
	ClinicID       string `json:"clinic_id"`
	ClinicName     string `json:"clinic_name,omitempty"`
	PractitionerID string `json:"practitioner_id,omitempty"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
	AnimalName     string `json:"animal_name"`
	Animals        int    `json:"animals"`
	Date           string `json:"date"`
	Time           string `json:"time"`
}

// Validate checks the fields every channel needs.
func (e BookingConfirmed) Validate() error {
	if e.BookingID == "" || e.ClinicID == "" {
		return errors.New("notify: booking and clinic id required")
	}
	if e.Date == "" || e.Time == "" {
		return errors.New("notify: date and time required")
	}
	return nil
}

// Notifier sends booking confirmations.
type Notifier interface {
	BookingConfirmed(ctx context.Context, evt BookingConfirmed) error
}

// LogNotifier only logs. Used when no delivery channel is configured.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) BookingConfirmed(ctx context.Context, evt BookingConfirmed) error {
	n.logger.Info("booking confirmed (no delivery channel)",
		"booking_id", evt.BookingID,
		"clinic_id", evt.ClinicID,
		"date", evt.Date,
		"time", evt.Time,
	)
	return nil
}

// Fanout delivers to every channel and joins their errors.
type Fanout []Notifier

func (f Fanout) BookingConfirmed(ctx context.Context, evt BookingConfirmed) error {
	var errs []error
	for i, n := range f {
		if n == nil {
			continue
		}
		if err := n.BookingConfirmed(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
