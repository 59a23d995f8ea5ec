package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func insertArgs() []any {
	args := make([]any, 15)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var bookingColumns = []string{
	"id", "group_id", "clinic_id", "practitioner_id", "slot_date", "start_time", "end_time",
	"duration_minutes", "status", "is_blocked", "client_name", "client_email", "animal_name", "reason", "created_at",
}

func strPtr(s string) *string { return &s }

func TestInsertCommitsAllRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").WithArgs(insertArgs()...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO bookings").WithArgs(insertArgs()...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewRepository(mock, nil)
	rows := []Booking{
		{ClinicID: "clinic-1", PractitionerID: "p1", Date: testDate, Start: 540, End: 570, Status: StatusConfirmed, Kind: KindAppointment},
		{ClinicID: "clinic-1", PractitionerID: "p1", Date: testDate, Start: 570, End: 600, Status: StatusConfirmed, Kind: KindAppointment},
	}
	if err := repo.Insert(context.Background(), rows); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	for _, b := range rows {
		if b.ID == uuid.Nil || b.CreatedAt.IsZero() {
			t.Fatalf("expected id and created_at to be assigned: %#v", b)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertMapsUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").WithArgs(insertArgs()...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO bookings").WithArgs(insertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_bookings_active_cell"})
	mock.ExpectRollback()

	repo := NewRepository(mock, nil)
	err = repo.Insert(context.Background(), []Booking{
		{ClinicID: "clinic-1", PractitionerID: "p1", Date: testDate, Start: 540, End: 570, Status: StatusConfirmed},
		{ClinicID: "clinic-1", PractitionerID: "p1", Date: testDate, Start: 570, End: 600, Status: StatusConfirmed},
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertWrapsOtherErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	err = NewRepository(mock, nil).Insert(context.Background(), []Booking{{ClinicID: "clinic-1"}})
	if err == nil || errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected wrapped begin error, got %v", err)
	}
}

func TestListRangeSkipsMalformedRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	group := uuid.New()
	created := time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(bookingColumns).
		AddRow(id, group, "clinic-1", strPtr("p1"), "2025-04-14", "09:00", "09:30", 30, "confirmed", false, "Alice", strPtr("alice@example.com"), "Moka", (*string)(nil), created).
		AddRow(uuid.New(), uuid.New(), "clinic-1", (*string)(nil), "2025-04-14", "10:00", "10:30", 30, "confirmed", true, BlockedMarker, (*string)(nil), BlockedMarker, strPtr("surgery"), created).
		AddRow(uuid.New(), uuid.New(), "clinic-1", strPtr("p2"), "2025-04-14", "11:00", "11:30", 30, "archived", false, "Bob", (*string)(nil), "Rex", (*string)(nil), created)
	mock.ExpectQuery("SELECT id, group_id").WithArgs("clinic-1", "2025-04-14", "2025-04-14").WillReturnRows(rows)

	got, err := NewRepository(mock, nil).ListForDate(context.Background(), "clinic-1", testDate)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows (malformed skipped), got %d", len(got))
	}
	first := got[0]
	if first.ID != id || first.PractitionerID != "p1" || first.Start.String() != "09:00" || first.ClientEmail != "alice@example.com" {
		t.Fatalf("unexpected first row: %#v", first)
	}
	if first.Kind != KindAppointment || first.Status != StatusConfirmed {
		t.Fatalf("unexpected kind/status: %s/%s", first.Kind, first.Status)
	}
	second := got[1]
	if !second.IsBlock() || second.PractitionerID != "" || second.Reason != "surgery" {
		t.Fatalf("unexpected block row: %#v", second)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListRangeQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id, group_id").WithArgs("clinic-1", "2025-04-14", "2025-04-20").WillReturnError(errors.New("timeout"))
	_, err = NewRepository(mock, nil).ListRange(context.Background(), "clinic-1", testDate, testDate.AddDays(6))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCancel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE bookings SET status = 'cancelled'").WithArgs("clinic-1", id).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec("UPDATE bookings SET status = 'cancelled'").WithArgs("clinic-1", id).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepository(mock, nil)
	n, err := repo.Cancel(context.Background(), "clinic-1", id)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 rows cancelled, got %d (%v)", n, err)
	}
	if _, err := repo.Cancel(context.Background(), "clinic-1", id); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, group_id").WithArgs("clinic-1", id).WillReturnError(pgx.ErrNoRows)

	if _, err := NewRepository(mock, nil).Get(context.Background(), "clinic-1", id); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}
