package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vetclinic-platform/internal/availability"
	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/internal/clinic"
)

var boardDate = caltime.MustParseDate("2025-04-14")

type stubLoader struct {
	snap     *availability.Snapshot
	err      error
	from, to caltime.Date
}

func (s *stubLoader) LoadSnapshot(ctx context.Context, clinicID string, from, to caltime.Date) (*availability.Snapshot, error) {
	s.from, s.to = from, to
	return s.snap, s.err
}

func booking(practitionerID, start string) bookings.Booking {
	c := caltime.MustParseClock(start)
	return bookings.Booking{
		ID:             uuid.New(),
		ClinicID:       "clinic-1",
		PractitionerID: practitionerID,
		Date:           boardDate,
		Start:          c,
		End:            c.Add(30),
		Status:         bookings.StatusConfirmed,
		Kind:           bookings.KindAppointment,
	}
}

func roster() []clinic.Practitioner {
	return []clinic.Practitioner{
		{ID: "p1", Name: "Dr Martin", Active: true},
		{ID: "p2", Name: "Dr Leroy", Active: true},
	}
}

func TestAssignLane(t *testing.T) {
	tests := []struct {
		name      string
		booking   bookings.Booking
		roster    []clinic.Practitioner
		wantLane  string
		wantKnown bool
	}{
		{"known practitioner", booking("p2", "09:00"), roster(), "p2", true},
		{"unassigned", booking("", "09:00"), roster(), "", true},
		{"unknown practitioner", booking("p9", "09:00"), roster(), "", false},
		{"empty roster", booking("p1", "09:00"), nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lane, known := AssignLane(tt.booking, tt.roster)
			assert.Equal(t, tt.wantLane, lane)
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestBuildBoard(t *testing.T) {
	late := booking("p1", "15:00")
	early := booking("p1", "09:00")
	block := booking("p2", "12:00")
	block.Kind = bookings.KindBlock
	orphan := booking("p9", "10:00")
	unassigned := booking("", "11:00")
	inactive := booking("p3", "16:00")
	cancelled := booking("p1", "10:00")
	cancelled.Status = bookings.StatusCancelled

	loader := &stubLoader{snap: &availability.Snapshot{
		Clinic: clinic.DefaultClinic("clinic-1"),
		Practitioners: []clinic.Practitioner{
			{ID: "p2", Name: "Dr Leroy", Active: true},
			{ID: "p1", Name: "Dr Martin", Active: true},
			{ID: "p3", Name: "Dr Retired", Active: false},
		},
		Bookings: []bookings.Booking{late, orphan, early, block, unassigned, inactive, cancelled},
	}}

	board, err := NewBuilder(loader, nil).Build(context.Background(), "clinic-1", boardDate)
	require.NoError(t, err)
	assert.Equal(t, boardDate, loader.from)
	assert.Equal(t, boardDate, loader.to)

	ids := make([]string, 0, len(board.Lanes))
	for _, l := range board.Lanes {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"p1", "p2", FallbackLane}, ids, "roster order then fallback")

	p1, ok := board.Lane("p1")
	require.True(t, ok)
	require.Len(t, p1.Bookings, 2, "cancelled row is not shown")
	assert.Equal(t, early.ID, p1.Bookings[0].ID)
	assert.Equal(t, late.ID, p1.Bookings[1].ID)

	p2, _ := board.Lane("p2")
	require.Len(t, p2.Bookings, 1)
	assert.True(t, p2.Bookings[0].IsBlock())

	fallback, ok := board.Unassigned()
	require.True(t, ok)
	require.Len(t, fallback.Bookings, 3)
	assert.Equal(t, "10:00", fallback.Bookings[0].Start.String())
	assert.Equal(t, "11:00", fallback.Bookings[1].Start.String())
	assert.Equal(t, "16:00", fallback.Bookings[2].Start.String())

	assert.Equal(t, []string{"p3", "p9"}, board.UnknownPractitioners)
}

func TestBuildBoardPractitionerIDMatchingFallback(t *testing.T) {
	own := booking(FallbackLane, "09:00")
	loose := booking("", "10:00")
	loader := &stubLoader{snap: &availability.Snapshot{
		Clinic:        clinic.DefaultClinic("clinic-1"),
		Practitioners: []clinic.Practitioner{{ID: FallbackLane, Name: "Dr Una Signed", Active: true}},
		Bookings:      []bookings.Booking{own, loose},
	}}

	board, err := NewBuilder(loader, nil).Build(context.Background(), "clinic-1", boardDate)
	require.NoError(t, err)
	require.Len(t, board.Lanes, 2)

	roster := board.Lanes[0]
	assert.False(t, roster.Fallback)
	require.Len(t, roster.Bookings, 1)
	assert.Equal(t, own.ID, roster.Bookings[0].ID)

	fallback, ok := board.Unassigned()
	require.True(t, ok)
	require.Len(t, fallback.Bookings, 1)
	assert.Equal(t, loose.ID, fallback.Bookings[0].ID)
	assert.Empty(t, board.UnknownPractitioners)
}

func TestBuildBoardEmptyDayStillHasLanes(t *testing.T) {
	loader := &stubLoader{snap: &availability.Snapshot{Clinic: clinic.DefaultClinic("clinic-1"), Practitioners: roster()}}
	board, err := NewBuilder(loader, nil).Build(context.Background(), "clinic-1", boardDate)
	require.NoError(t, err)
	require.Len(t, board.Lanes, 3)
	for _, l := range board.Lanes {
		assert.NotNil(t, l.Bookings)
		assert.Empty(t, l.Bookings)
	}
	assert.Empty(t, board.UnknownPractitioners)
}

func TestBuildBoardErrors(t *testing.T) {
	b := NewBuilder(&stubLoader{err: &availability.DataFetchError{Collection: "bookings", Err: errors.New("timeout")}}, nil)

	_, err := b.Build(context.Background(), "clinic-1", boardDate)
	assert.ErrorIs(t, err, availability.ErrDataFetch)

	_, err = b.Build(context.Background(), "", boardDate)
	assert.ErrorIs(t, err, availability.ErrInvalidInput)

	_, err = b.Build(context.Background(), "clinic-1", caltime.Date{})
	assert.ErrorIs(t, err, availability.ErrInvalidInput)
}
