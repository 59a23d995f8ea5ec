package clinicdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Purger archives past bookings to S3 and then deletes them, together with
// absences that ended before the cutoff.
type Purger struct {
	db       DB
	archiver *Archiver
	logger   *logging.Logger
}

func NewPurger(db DB, archiver *Archiver, logger *logging.Logger) *Purger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Purger{
		db:       db,
		archiver: archiver,
		logger:   logger,
	}
}

type PurgeCounts struct {
	Bookings int64
	Absences int64
}

type PurgeResult struct {
	ClinicID         string
	Cutoff           caltime.Date
	DaysArchived     int
	BookingsArchived int
	Deleted          PurgeCounts
}

// PurgeBefore archives each day before cutoff, then deletes those rows in a
// single transaction. Nothing is deleted if any day fails to archive.
func (p *Purger) PurgeBefore(ctx context.Context, clinicID string, cutoff caltime.Date) (PurgeResult, error) {
	clinicID = strings.TrimSpace(clinicID)
	if p == nil || p.db == nil {
		return PurgeResult{}, fmt.Errorf("clinicdata: database not configured")
	}
	if clinicID == "" {
		return PurgeResult{}, fmt.Errorf("clinicdata: missing clinicID")
	}

	resp := PurgeResult{ClinicID: clinicID, Cutoff: cutoff}

	days, err := p.daysBefore(ctx, clinicID, cutoff)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("clinicdata: list archive days: %w", err)
	}
	for _, d := range days {
		res, err := p.archiver.ArchiveDay(ctx, clinicID, d)
		if err != nil {
			return PurgeResult{}, fmt.Errorf("clinicdata: archive %s: %w", d, err)
		}
		resp.DaysArchived++
		resp.BookingsArchived += res.BookingsArchived
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("clinicdata: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	resp.Deleted.Bookings, err = execRowsAffected(ctx, tx, `
		DELETE FROM bookings WHERE clinic_id = $1 AND slot_date < $2::date
	`, clinicID, cutoff.String())
	if err != nil {
		return PurgeResult{}, fmt.Errorf("clinicdata: delete bookings: %w", err)
	}

	resp.Deleted.Absences, err = execRowsAffected(ctx, tx, `
		DELETE FROM absences WHERE clinic_id = $1 AND end_date < $2::date
	`, clinicID, cutoff.String())
	if err != nil {
		return PurgeResult{}, fmt.Errorf("clinicdata: delete absences: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return PurgeResult{}, fmt.Errorf("clinicdata: commit: %w", err)
	}

	p.logger.Info("clinicdata: purge completed",
		"clinic_id", clinicID,
		"cutoff", cutoff.String(),
		"days_archived", resp.DaysArchived,
		"bookings_deleted", resp.Deleted.Bookings,
		"absences_deleted", resp.Deleted.Absences,
	)
	return resp, nil
}

func (p *Purger) daysBefore(ctx context.Context, clinicID string, cutoff caltime.Date) ([]caltime.Date, error) {
	rows, err := p.db.Query(ctx, `
		SELECT DISTINCT to_char(slot_date, 'YYYY-MM-DD')
		FROM bookings
		WHERE clinic_id = $1 AND slot_date < $2::date AND status <> 'cancelled'
		ORDER BY 1
	`, clinicID, cutoff.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []caltime.Date
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := caltime.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func execRowsAffected(ctx context.Context, tx pgx.Tx, query string, args ...any) (int64, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RetentionConfig controls the scheduled purge.
type RetentionConfig struct {
	Enabled bool
	Days    int
}

// RetentionJob runs PurgeBefore for every clinic with a cutoff of Days
// before the current UTC date.
type RetentionJob struct {
	db      DB
	purger  *Purger
	days    int
	enabled bool
	logger  *logging.Logger
}

func NewRetentionJob(db DB, purger *Purger, cfg RetentionConfig, logger *logging.Logger) *RetentionJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &RetentionJob{
		db:      db,
		purger:  purger,
		days:    cfg.Days,
		enabled: cfg.Enabled && purger != nil && cfg.Days > 0,
		logger:  logger,
	}
}

// Run purges each clinic in turn. A failing clinic is logged and skipped so
// the others still run; the first error is returned at the end.
func (j *RetentionJob) Run(ctx context.Context, now time.Time) ([]PurgeResult, error) {
	if j == nil || !j.enabled {
		return nil, nil
	}
	cutoff := caltime.DateOf(now.UTC()).AddDays(-j.days)

	clinicIDs, err := j.clinicIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("clinicdata: list clinics: %w", err)
	}

	var (
		results  []PurgeResult
		firstErr error
	)
	for _, id := range clinicIDs {
		res, err := j.purger.PurgeBefore(ctx, id, cutoff)
		if err != nil {
			j.logger.Warn("retention purge failed", "error", err, "clinic_id", id, "cutoff", cutoff.String())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}
	return results, firstErr
}

func (j *RetentionJob) clinicIDs(ctx context.Context) ([]string, error) {
	rows, err := j.db.Query(ctx, `SELECT id FROM clinics ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
