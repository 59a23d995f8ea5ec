package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var bookingsTracer = otel.Tracer("vetclinic.internal.bookings")

// Store is the persistence boundary of the service. Repository implements it.
type Store interface {
	Insert(ctx context.Context, rows []Booking) error
	Cancel(ctx context.Context, clinicID string, id uuid.UUID) (int64, error)
}

// SlotChecker re-runs availability for a single cell before a write.
// FirstFree picks a practitioner for a no-preference request; ok is false
// when the cell is not published.
type SlotChecker interface {
	IsBookable(ctx context.Context, clinicID, practitionerID string, d caltime.Date, t caltime.Clock, animals int) (bool, error)
	FirstFree(ctx context.Context, clinicID string, d caltime.Date, t caltime.Clock, animals int) (string, bool, error)
}

// ClinicLookup resolves clinic settings (slot length, hours, name).
type ClinicLookup interface {
	Clinic(ctx context.Context, clinicID string) (*clinic.Clinic, error)
}

// BookRequest is a client appointment for one or two animals. An empty
// PractitionerID means no preference. Status is set by staff tooling only and
// defaults to confirmed.
type BookRequest struct {
	ClinicID       string        `json:"-"`
	PractitionerID string        `json:"practitioner_id,omitempty"`
	Date           caltime.Date  `json:"date"`
	Time           caltime.Clock `json:"time"`
	Animals        int           `json:"animals"`
	ClientName     string        `json:"client_name"`
	ClientEmail    string        `json:"client_email"`
	AnimalName     string        `json:"animal_name"`
	Status         Status        `json:"-"`
}

// BlockRequest blocks [Start, End) for one practitioner.
type BlockRequest struct {
	ClinicID       string        `json:"-"`
	PractitionerID string        `json:"practitioner_id"`
	Date           caltime.Date  `json:"date"`
	Start          caltime.Clock `json:"start"`
	End            caltime.Clock `json:"end"`
	Reason         string        `json:"reason"`
}

// Service writes bookings and blocks through the uniqueness guard.
type Service struct {
	store    Store
	clinics  ClinicLookup
	checker  SlotChecker
	notifier notify.Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewService constructs a bookings service. checker and notifier are optional.
func NewService(store Store, clinics ClinicLookup, checker SlotChecker, notifier notify.Notifier, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if store == nil {
		panic("bookings: store required")
	}
	if clinics == nil {
		panic("bookings: clinic lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		clinics:  clinics,
		checker:  checker,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// Book reserves one grid cell, or two contiguous cells for two animals, in a
// single transaction. ErrSlotTaken means the caller must re-query availability.
func (s *Service) Book(ctx context.Context, req BookRequest) ([]Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("vetclinic.clinic_id", req.ClinicID),
		attribute.String("vetclinic.slot", req.Date.String()+" "+req.Time.String()),
	)
	if req.PractitionerID != "" {
		span.SetAttributes(attribute.String("vetclinic.practitioner_id", req.PractitionerID))
	}

	if req.Animals == 0 {
		req.Animals = 1
	}
	if req.Status == "" {
		req.Status = StatusConfirmed
	}
	if err := validateBook(req); err != nil {
		return nil, err
	}

	c, err := s.clinics.Clinic(ctx, req.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("bookings: load clinic: %w", err)
	}
	for i := 0; i < req.Animals; i++ {
		if cell := req.Time.Add(i * c.SlotMinutes); !OnGrid(c, req.Date, cell) {
			return nil, fmt.Errorf("%w: %s %s is not a slot start", ErrInvalidRequest, req.Date, cell)
		}
	}

	if req.PractitionerID == "" {
		if s.checker == nil {
			return nil, fmt.Errorf("%w: practitioner required", ErrInvalidRequest)
		}
		id, ok, err := s.checker.FirstFree(ctx, req.ClinicID, req.Date, req.Time, req.Animals)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if !ok {
			s.metrics.ObserveWrite(string(KindAppointment), metrics.OutcomeConflict)
			return nil, ErrSlotUnavailable
		}
		req.PractitionerID = id
		span.SetAttributes(attribute.String("vetclinic.practitioner_id", id))
	}

	if s.checker != nil {
		ok, err := s.checker.IsBookable(ctx, req.ClinicID, req.PractitionerID, req.Date, req.Time, req.Animals)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if !ok {
			s.metrics.ObserveWrite(string(KindAppointment), metrics.OutcomeConflict)
			return nil, ErrSlotUnavailable
		}
	}

	group := uuid.New()
	rows := make([]Booking, 0, req.Animals)
	for i := 0; i < req.Animals; i++ {
		start := req.Time.Add(i * c.SlotMinutes)
		rows = append(rows, Booking{
			GroupID:         group,
			ClinicID:        req.ClinicID,
			PractitionerID:  req.PractitionerID,
			Date:            req.Date,
			Start:           start,
			End:             start.Add(c.SlotMinutes),
			DurationMinutes: c.SlotMinutes,
			Status:          req.Status,
			Kind:            KindAppointment,
			ClientName:      req.ClientName,
			ClientEmail:     req.ClientEmail,
			AnimalName:      req.AnimalName,
		})
	}

	if err := s.store.Insert(ctx, rows); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveWrite(string(KindAppointment), metrics.OutcomeConflict)
			s.logger.Info("booking lost uniqueness race", "clinic_id", req.ClinicID,
				"practitioner_id", req.PractitionerID, "date", req.Date.String(), "time", req.Time.String())
			return nil, err
		}
		s.metrics.ObserveWrite(string(KindAppointment), metrics.OutcomeError)
		return nil, err
	}
	s.metrics.ObserveWrite(string(KindAppointment), metrics.OutcomeCreated)
	s.logger.Info("booking created", "clinic_id", req.ClinicID, "booking_id", rows[0].ID,
		"practitioner_id", req.PractitionerID, "date", req.Date.String(), "time", req.Time.String(), "cells", len(rows))

	s.notifyConfirmed(ctx, c, rows, req.Animals)
	return rows, nil
}

// Block stores a manual block as one KindBlock row per grid cell in [Start, End).
// Start and End must fall on slot boundaries; cells outside opening hours are
// skipped.
func (s *Service) Block(ctx context.Context, req BlockRequest) ([]Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.block")
	defer span.End()
	span.SetAttributes(
		attribute.String("vetclinic.clinic_id", req.ClinicID),
		attribute.String("vetclinic.practitioner_id", req.PractitionerID),
	)

	if strings.TrimSpace(req.ClinicID) == "" || strings.TrimSpace(req.PractitionerID) == "" {
		return nil, fmt.Errorf("%w: clinic and practitioner required", ErrInvalidRequest)
	}
	if req.Date.IsZero() || req.End <= req.Start {
		return nil, fmt.Errorf("%w: block needs a date and start < end", ErrInvalidRequest)
	}

	c, err := s.clinics.Clinic(ctx, req.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("bookings: load clinic: %w", err)
	}
	if !OnGrid(c, req.Date, req.Start) {
		return nil, fmt.Errorf("%w: block must start on a slot", ErrInvalidRequest)
	}
	if (req.End-req.Start).Minutes()%c.SlotMinutes != 0 {
		return nil, fmt.Errorf("%w: block must end on a slot boundary", ErrInvalidRequest)
	}

	group := uuid.New()
	var rows []Booking
	for t := req.Start; t < req.End; t = t.Add(c.SlotMinutes) {
		// cells in the lunch gap or after closing are not bookable anyway
		if !OnGrid(c, req.Date, t) {
			continue
		}
		rows = append(rows, Booking{
			GroupID:         group,
			ClinicID:        req.ClinicID,
			PractitionerID:  req.PractitionerID,
			Date:            req.Date,
			Start:           t,
			End:             t.Add(c.SlotMinutes),
			DurationMinutes: c.SlotMinutes,
			Status:          StatusConfirmed,
			Kind:            KindBlock,
			ClientName:      BlockedMarker,
			AnimalName:      BlockedMarker,
			Reason:          req.Reason,
		})
	}

	if err := s.store.Insert(ctx, rows); err != nil {
		span.RecordError(err)
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrSlotTaken) {
			outcome = metrics.OutcomeConflict
		}
		s.metrics.ObserveWrite(string(KindBlock), outcome)
		return nil, err
	}
	s.metrics.ObserveWrite(string(KindBlock), metrics.OutcomeCreated)
	s.logger.Info("block created", "clinic_id", req.ClinicID, "practitioner_id", req.PractitionerID,
		"date", req.Date.String(), "start", req.Start.String(), "end", req.End.String())
	return rows, nil
}

// Cancel frees every cell of the booking's group.
func (s *Service) Cancel(ctx context.Context, clinicID string, id uuid.UUID) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("vetclinic.clinic_id", clinicID), attribute.String("vetclinic.booking_id", id.String()))

	n, err := s.store.Cancel(ctx, clinicID, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("booking cancelled", "clinic_id", clinicID, "booking_id", id, "rows", n)
	return nil
}

func (s *Service) notifyConfirmed(ctx context.Context, c *clinic.Clinic, rows []Booking, animals int) {
	if s.notifier == nil || len(rows) == 0 {
		return
	}
	first := rows[0]
	evt := notify.BookingConfirmed{
		BookingID:      first.ID.String(),
		ClinicID:       first.ClinicID,
		ClinicName:     c.Name,
		PractitionerID: first.PractitionerID,
		RecipientName:  first.ClientName,
		RecipientEmail: first.ClientEmail,
		AnimalName:     first.AnimalName,
		Animals:        animals,
		Date:           first.Date.String(),
		Time:           first.Start.String(),
	}
	if err := s.notifier.BookingConfirmed(ctx, evt); err != nil {
		s.logger.Error("booking confirmation failed", "booking_id", evt.BookingID, "error", err)
	}
}

func validateBook(req BookRequest) error {
	switch {
	case strings.TrimSpace(req.ClinicID) == "":
		return fmt.Errorf("%w: clinic required", ErrInvalidRequest)
	case req.Date.IsZero():
		return fmt.Errorf("%w: date required", ErrInvalidRequest)
	case req.Animals != 1 && req.Animals != 2:
		return fmt.Errorf("%w: animals must be 1 or 2", ErrInvalidRequest)
	case strings.TrimSpace(req.ClientName) == "":
		return fmt.Errorf("%w: client name required", ErrInvalidRequest)
	case strings.TrimSpace(req.AnimalName) == "":
		return fmt.Errorf("%w: animal name required", ErrInvalidRequest)
	}
	if req.Status != StatusPending && req.Status != StatusConfirmed {
		return fmt.Errorf("%w: status %q", ErrInvalidRequest, req.Status)
	}
	return nil
}

// OnGrid reports whether t is a slot start of the clinic on day d.
func OnGrid(c *clinic.Clinic, d caltime.Date, t caltime.Clock) bool {
	if c == nil || c.SlotMinutes <= 0 || !c.IsOpenOn(d.Weekday()) {
		return false
	}
	for _, w := range c.HoursFor(d.Weekday()).Windows() {
		if w.Contains(t) && (t-w.Start).Minutes()%c.SlotMinutes == 0 {
			return true
		}
	}
	return false
}
