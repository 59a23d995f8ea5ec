package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/vetclinic-platform/cmd/mainconfig"
	"github.com/wolfman30/vetclinic-platform/internal/app/bootstrap"
	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/clinicdata"
	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// retentionRunner is satisfied by *clinicdata.RetentionJob.
type retentionRunner interface {
	Run(ctx context.Context, now time.Time) ([]clinicdata.PurgeResult, error)
}

type summary struct {
	Clinics          int    `json:"clinics"`
	DaysArchived     int    `json:"days_archived"`
	BookingsArchived int    `json:"bookings_archived"`
	BookingsDeleted  int64  `json:"bookings_deleted"`
	AbsencesDeleted  int64  `json:"absences_deleted"`
	Cutoff           string `json:"cutoff,omitempty"`
}

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if strings.TrimSpace(cfg.ArchiveBucket) == "" {
		logger.Error("retention lambda requires ARCHIVE_BUCKET")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	archiver := clinicdata.NewArchiver(clinicdata.ArchiverConfig{
		Bookings: bookings.NewRepository(pool, logger),
		S3:       mainconfig.NewS3Client(awsCfg, cfg),
		Bucket:   cfg.ArchiveBucket,
		Logger:   logger,
	})
	job := clinicdata.NewRetentionJob(pool, clinicdata.NewPurger(pool, archiver, logger), clinicdata.RetentionConfig{
		Enabled: cfg.RetentionEnabled,
		Days:    cfg.RetentionDays,
	}, logger)

	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (summary, error) {
		return handle(ctx, job, evt, logger)
	})
}

// handle runs one retention pass. The scheduled event time is the reference
// "now" so retried invocations compute the same cutoff.
func handle(ctx context.Context, job retentionRunner, evt events.CloudWatchEvent, logger *logging.Logger) (summary, error) {
	now := evt.Time
	if now.IsZero() {
		now = time.Now()
	}
	logger.Info("retention run started", "event_id", evt.ID, "scheduled_at", now.UTC().Format(time.RFC3339))

	results, err := job.Run(ctx, now)
	out := summarize(results)
	if err != nil {
		logger.Error("retention run finished with errors", "clinics", out.Clinics, "error", err)
		return out, fmt.Errorf("retention: %w", err)
	}
	logger.Info("retention run finished",
		"clinics", out.Clinics,
		"bookings_archived", out.BookingsArchived,
		"bookings_deleted", out.BookingsDeleted,
		"absences_deleted", out.AbsencesDeleted,
	)
	return out, nil
}

func summarize(results []clinicdata.PurgeResult) summary {
	out := summary{Clinics: len(results)}
	for _, r := range results {
		out.DaysArchived += r.DaysArchived
		out.BookingsArchived += r.BookingsArchived
		out.BookingsDeleted += r.Deleted.Bookings
		out.AbsencesDeleted += r.Deleted.Absences
		out.Cutoff = r.Cutoff.String()
	}
	return out
}
