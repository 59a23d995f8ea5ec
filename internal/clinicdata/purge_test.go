package clinicdata

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
)

func TestPurgeBeforeArchivesThenDeletes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	cutoff := caltime.MustParseDate("2025-04-16")
	mock.ExpectQuery("SELECT DISTINCT").WithArgs("clinic-1", "2025-04-16").WillReturnRows(
		pgxmock.NewRows([]string{"slot_date"}).AddRow("2025-04-14").AddRow("2025-04-15"),
	)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM bookings").WithArgs("clinic-1", "2025-04-16").WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec("DELETE FROM absences").WithArgs("clinic-1", "2025-04-16").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	client := &fakeS3{}
	lister := &stubLister{rows: []bookings.Booking{{ClinicID: "clinic-1"}, {ClinicID: "clinic-1"}}}
	purger := NewPurger(mock, newTestArchiver(lister, client), nil)

	res, err := purger.PurgeBefore(context.Background(), "clinic-1", cutoff)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if res.DaysArchived != 2 || res.BookingsArchived != 4 || len(client.inputs) != 2 {
		t.Fatalf("unexpected archive counts: %#v (uploads=%d)", res, len(client.inputs))
	}
	if res.Deleted.Bookings != 4 || res.Deleted.Absences != 1 {
		t.Fatalf("unexpected delete counts: %#v", res.Deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPurgeBeforeKeepsRowsWhenArchiveFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT DISTINCT").WithArgs("clinic-1", "2025-04-16").WillReturnRows(
		pgxmock.NewRows([]string{"slot_date"}).AddRow("2025-04-14"),
	)

	lister := &stubLister{rows: []bookings.Booking{{ClinicID: "clinic-1"}}}
	purger := NewPurger(mock, newTestArchiver(lister, &fakeS3{err: errors.New("throttled")}), nil)

	if _, err := purger.PurgeBefore(context.Background(), "clinic-1", caltime.MustParseDate("2025-04-16")); err == nil {
		t.Fatal("expected archive failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no delete may run after a failed archive: %v", err)
	}
}

func TestRetentionJobRunsEveryClinic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id FROM clinics").WillReturnRows(
		pgxmock.NewRows([]string{"id"}).AddRow("clinic-1").AddRow("clinic-2"),
	)
	mock.ExpectQuery("SELECT DISTINCT").WithArgs("clinic-1", "2025-04-01").WillReturnError(errors.New("statement timeout"))
	mock.ExpectQuery("SELECT DISTINCT").WithArgs("clinic-2", "2025-04-01").WillReturnRows(pgxmock.NewRows([]string{"slot_date"}))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM bookings").WithArgs("clinic-2", "2025-04-01").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM absences").WithArgs("clinic-2", "2025-04-01").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	purger := NewPurger(mock, newTestArchiver(&stubLister{}, &fakeS3{}), nil)
	job := NewRetentionJob(mock, purger, RetentionConfig{Enabled: true, Days: 30}, nil)

	results, err := job.Run(context.Background(), time.Date(2025, 5, 1, 23, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected the first clinic's error to be reported")
	}
	if len(results) != 1 || results[0].ClinicID != "clinic-2" {
		t.Fatalf("expected clinic-2 to still be purged, got %#v", results)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRetentionJobDisabled(t *testing.T) {
	job := NewRetentionJob(nil, nil, RetentionConfig{Enabled: true, Days: 30}, nil)
	results, err := job.Run(context.Background(), time.Now())
	if err != nil || results != nil {
		t.Fatalf("disabled job must be a no-op, got %v %v", results, err)
	}
}
