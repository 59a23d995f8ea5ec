package availability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

var availabilityTracer = otel.Tracer("vetclinic.internal.availability")

// SnapshotLoader reads every reference collection for [from, to] in one pass.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, clinicID string, from, to caltime.Date) (*Snapshot, error)
}

// ServiceConfig holds the horizon defaults.
type ServiceConfig struct {
	DefaultDays int
	MaxDays     int
}

// Service loads a snapshot and runs the engine for HTTP and booking callers.
type Service struct {
	loader  SnapshotLoader
	engine  *Engine
	cfg     ServiceConfig
	metrics *metrics.AvailabilityMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(loader SnapshotLoader, engine *Engine, cfg ServiceConfig, m *metrics.AvailabilityMetrics, logger *logging.Logger) *Service {
	if loader == nil {
		panic("availability: snapshot loader required")
	}
	if engine == nil {
		engine = NewEngine(DefaultOptions())
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 7
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		loader:  loader,
		engine:  engine,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Availability validates q, fetches the snapshot once and computes the result.
// Zero Days and Animals take their defaults; a zero Now uses the wall clock.
func (s *Service) Availability(ctx context.Context, q Query) (Result, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.compute")
	defer span.End()
	start := time.Now()

	if q.Days == 0 {
		q.Days = s.cfg.DefaultDays
	}
	if q.Animals == 0 {
		q.Animals = 1
	}
	if q.Now.IsZero() {
		q.Now = s.now()
	}
	span.SetAttributes(
		attribute.String("vetclinic.clinic_id", q.ClinicID),
		attribute.Int("vetclinic.days", q.Days),
		attribute.Int("vetclinic.animals", q.Animals),
		attribute.String("vetclinic.practitioner_id", q.PractitionerID),
	)

	if err := q.validate(s.cfg.MaxDays); err != nil {
		s.observe(err, start)
		return Result{}, err
	}

	from, to := loadRange(q.Now, q.Days)
	snap, err := s.loader.LoadSnapshot(ctx, q.ClinicID, from, to)
	if err != nil {
		span.RecordError(err)
		s.observe(err, start)
		s.logger.Warn("availability snapshot load failed", "clinic_id", q.ClinicID, "error", err)
		return Result{}, err
	}

	res, err := s.engine.Compute(snap, q)
	if err != nil {
		span.RecordError(err)
		s.observe(err, start)
		return Result{}, err
	}

	s.observe(nil, start)
	s.metrics.ObservePublished(res.SlotCount())
	span.SetAttributes(attribute.Int("vetclinic.published_slots", res.SlotCount()))
	s.logger.Debug("availability computed", "clinic_id", q.ClinicID, "days", len(res.Days), "slots", res.SlotCount())
	return res, nil
}

// IsBookable re-checks one cell against fresh data. A true result is still
// advisory; the write can lose the race to a concurrent booking.
func (s *Service) IsBookable(ctx context.Context, clinicID, practitionerID string, d caltime.Date, t caltime.Clock, animals int) (bool, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.is_bookable")
	defer span.End()
	span.SetAttributes(
		attribute.String("vetclinic.clinic_id", clinicID),
		attribute.String("vetclinic.practitioner_id", practitionerID),
		attribute.String("vetclinic.slot", d.String()+" "+t.String()),
	)

	snap, err := s.loader.LoadSnapshot(ctx, clinicID, d.AddDays(-1), d.AddDays(1))
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	reason, err := s.engine.Check(snap, practitionerID, d, t, animals, s.now())
	if err != nil {
		return false, err
	}
	if reason != "" {
		s.logger.Info("slot refused", "clinic_id", clinicID, "practitioner_id", practitionerID,
			"date", d.String(), "time", t.String(), "rule", reason)
		return false, nil
	}
	return true, nil
}

// FirstFree resolves a no-preference request to the first active practitioner,
// by id, who can take (d, t) for the given number of animals. ok is false when
// nobody can, which is exactly when the slot is not published.
func (s *Service) FirstFree(ctx context.Context, clinicID string, d caltime.Date, t caltime.Clock, animals int) (string, bool, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.first_free")
	defer span.End()
	span.SetAttributes(
		attribute.String("vetclinic.clinic_id", clinicID),
		attribute.String("vetclinic.slot", d.String()+" "+t.String()),
	)

	snap, err := s.loader.LoadSnapshot(ctx, clinicID, d.AddDays(-1), d.AddDays(1))
	if err != nil {
		span.RecordError(err)
		return "", false, err
	}
	if snap == nil || snap.Clinic == nil {
		return "", false, ErrClinicNotFound
	}
	now := s.now()
	for _, p := range snap.Roster() {
		reason, err := s.engine.Check(snap, p.ID, d, t, animals, now)
		if err != nil {
			return "", false, err
		}
		if reason == "" {
			span.SetAttributes(attribute.String("vetclinic.practitioner_id", p.ID))
			return p.ID, true, nil
		}
	}
	return "", false, nil
}

func (s *Service) observe(err error, start time.Time) {
	s.metrics.ObserveComputation(outcomeFor(err), time.Since(start).Seconds())
}

// loadRange widens the horizon by one day on each side so the clinic's local
// "today" is covered whatever its offset from UTC.
func loadRange(now time.Time, days int) (caltime.Date, caltime.Date) {
	today := caltime.DateOf(now.UTC())
	return today.AddDays(-1), today.AddDays(days)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrConfiguration):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrDataFetch):
		return metrics.OutcomeFetchError
	default:
		return metrics.OutcomeError
	}
}
