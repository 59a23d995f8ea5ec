package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
)

type stubLoader struct {
	snap  *Snapshot
	err   error
	calls int
	from  caltime.Date
	to    caltime.Date
}

func (s *stubLoader) LoadSnapshot(ctx context.Context, clinicID string, from, to caltime.Date) (*Snapshot, error) {
	s.calls++
	s.from, s.to = from, to
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func newTestService(t *testing.T, loader SnapshotLoader) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc := NewService(loader, NewEngine(DefaultOptions()), ServiceConfig{DefaultDays: 7, MaxDays: 30}, metrics.NewAvailabilityMetrics(reg), nil)
	svc.now = func() time.Time { return monday.At(0, time.UTC) }
	return svc, reg
}

func TestServiceLoadsSnapshotOnce(t *testing.T) {
	loader := &stubLoader{snap: snapshotWith(morningClinic(), "p1")}
	svc, _ := newTestService(t, loader)

	res, err := svc.Availability(context.Background(), Query{ClinicID: "clinic-1"})
	require.NoError(t, err)
	assert.Len(t, res.Days, 7)
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, monday.AddDays(-1), loader.from)
	assert.Equal(t, monday.AddDays(7), loader.to)
}

func TestServiceRejectsHorizonAboveMax(t *testing.T) {
	loader := &stubLoader{snap: snapshotWith(morningClinic(), "p1")}
	svc, reg := newTestService(t, loader)

	_, err := svc.Availability(context.Background(), Query{ClinicID: "clinic-1", Days: 31})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, loader.calls, "validation happens before any fetch")

	count, err := testutil.GatherAndCount(reg, "vetclinic_availability_computations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServiceSurfacesFetchErrors(t *testing.T) {
	fetchErr := &DataFetchError{Collection: "bookings", Err: errors.New("connection refused")}
	svc, _ := newTestService(t, &stubLoader{err: fetchErr})

	_, err := svc.Availability(context.Background(), Query{ClinicID: "clinic-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataFetch)

	var dfe *DataFetchError
	require.ErrorAs(t, err, &dfe)
	assert.True(t, dfe.Retryable())
	assert.Equal(t, "bookings", dfe.Collection)
}

func TestServiceIsBookable(t *testing.T) {
	snap := snapshotWith(morningClinic(), "p1")
	snap.Bookings = []bookings.Booking{booking("p1", monday, "10:00", bookings.StatusConfirmed)}
	svc, _ := newTestService(t, &stubLoader{snap: snap})
	ctx := context.Background()

	ok, err := svc.IsBookable(ctx, "clinic-1", "p1", monday, caltime.MustParseClock("09:00"), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsBookable(ctx, "clinic-1", "p1", monday, caltime.MustParseClock("10:00"), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsBookable(ctx, "clinic-1", "p1", monday, caltime.MustParseClock("09:30"), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.IsBookable(ctx, "clinic-1", "ghost", monday, caltime.MustParseClock("09:00"), 1)
	assert.ErrorIs(t, err, ErrPractitionerNotFound)
}

func TestServiceFirstFree(t *testing.T) {
	snap := snapshotWith(morningClinic(), "p1", "p2")
	snap.Bookings = []bookings.Booking{booking("p1", monday, "10:00", bookings.StatusConfirmed)}
	svc, _ := newTestService(t, &stubLoader{snap: snap})
	ctx := context.Background()

	id, ok, err := svc.FirstFree(ctx, "clinic-1", monday, caltime.MustParseClock("09:00"), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p1", id)

	id, ok, err = svc.FirstFree(ctx, "clinic-1", monday, caltime.MustParseClock("10:00"), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p2", id, "p1 is booked at 10:00")

	snap.Bookings = append(snap.Bookings, booking("p2", monday, "10:00", bookings.StatusConfirmed))
	_, ok, err = svc.FirstFree(ctx, "clinic-1", monday, caltime.MustParseClock("10:00"), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = svc.FirstFree(ctx, "clinic-1", monday, caltime.MustParseClock("09:30"), 2)
	require.NoError(t, err)
	assert.False(t, ok, "nobody has 10:00 free for the second animal")

	_, ok, err = svc.FirstFree(ctx, "clinic-1", monday.AddDays(-7), caltime.MustParseClock("09:00"), 1)
	require.NoError(t, err)
	assert.False(t, ok, "past dates are never free")
}

func TestOutcomeFor(t *testing.T) {
	assert.Equal(t, metrics.OutcomeOK, outcomeFor(nil))
	assert.Equal(t, metrics.OutcomeInvalid, outcomeFor(&ValidationError{Field: "days"}))
	assert.Equal(t, metrics.OutcomeNotFound, outcomeFor(ErrClinicNotFound))
	assert.Equal(t, metrics.OutcomeFetchError, outcomeFor(&DataFetchError{Collection: "absences", Err: errors.New("x")}))
	assert.Equal(t, metrics.OutcomeError, outcomeFor(errors.New("other")))
}
