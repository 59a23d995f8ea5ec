package clinicdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/vetclinic-platform/internal/bookings"
	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// S3Client interface for S3 operations (allows mocking in tests)
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver exports a clinic's bookings for one day to S3 as JSONL.
type Archiver struct {
	bookings BookingLister
	s3       S3Client
	bucket   string
	logger   *logging.Logger
	now      func() time.Time
}

// ArchiverConfig holds configuration for the Archiver.
type ArchiverConfig struct {
	Bookings BookingLister
	S3       S3Client
	Bucket   string
	Logger   *logging.Logger
}

// NewArchiver creates a new Archiver instance.
func NewArchiver(cfg ArchiverConfig) *Archiver {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Archiver{
		bookings: cfg.Bookings,
		s3:       cfg.S3,
		bucket:   cfg.Bucket,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// ArchivedBooking is one JSONL line. Client emails are partially redacted.
type ArchivedBooking struct {
	BookingID      string    `json:"booking_id"`
	GroupID        string    `json:"group_id"`
	ClinicID       string    `json:"clinic_id"`
	PractitionerID string    `json:"practitioner_id,omitempty"`
	Date           string    `json:"date"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	Status         string    `json:"status"`
	Kind           string    `json:"kind"`
	ClientName     string    `json:"client_name"`
	ClientEmail    string    `json:"client_email_redacted,omitempty"`
	AnimalName     string    `json:"animal_name"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ArchivedAt     time.Time `json:"archived_at"`
}

// ArchiveResult contains the result of an archive operation.
type ArchiveResult struct {
	BookingsArchived int
	S3Key            string
	BytesWritten     int64
}

// ArchiveDay uploads every non-cancelled booking of clinicID on d.
// An empty day uploads nothing and returns a zero result.
func (a *Archiver) ArchiveDay(ctx context.Context, clinicID string, d caltime.Date) (*ArchiveResult, error) {
	if a == nil || a.bookings == nil || a.s3 == nil || a.bucket == "" {
		return nil, fmt.Errorf("clinicdata: archiver not configured")
	}
	clinicID = strings.TrimSpace(clinicID)
	if clinicID == "" {
		return nil, fmt.Errorf("clinicdata: missing clinicID")
	}

	rows, err := a.bookings.ListRange(ctx, clinicID, d, d)
	if err != nil {
		return nil, fmt.Errorf("clinicdata: fetch bookings: %w", err)
	}
	if len(rows) == 0 {
		a.logger.Info("clinicdata: no bookings to archive", "clinic_id", clinicID, "date", d.String())
		return &ArchiveResult{}, nil
	}

	now := a.now().UTC()
	var buf bytes.Buffer
	for _, b := range rows {
		line, err := json.Marshal(archivedFrom(b, now))
		if err != nil {
			a.logger.Warn("clinicdata: failed to marshal booking", "error", err, "booking_id", b.ID)
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	key := fmt.Sprintf("bookings/archive/%d/%02d/%02d/%s/day_%s.jsonl",
		d.Year, int(d.Month), d.Day, clinicID, now.Format("20060102T150405Z"))

	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"clinic_id":     clinicID,
			"slot_date":     d.String(),
			"booking_count": fmt.Sprintf("%d", len(rows)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clinicdata: s3 upload failed: %w", err)
	}

	a.logger.Info("clinicdata: archived bookings",
		"clinic_id", clinicID,
		"date", d.String(),
		"bookings", len(rows),
		"s3_key", key,
	)
	return &ArchiveResult{
		BookingsArchived: len(rows),
		S3Key:            key,
		BytesWritten:     int64(buf.Len()),
	}, nil
}

func archivedFrom(b bookings.Booking, at time.Time) ArchivedBooking {
	return ArchivedBooking{
		BookingID:      b.ID.String(),
		GroupID:        b.GroupID.String(),
		ClinicID:       b.ClinicID,
		PractitionerID: b.PractitionerID,
		Date:           b.Date.String(),
		Start:          b.Start.String(),
		End:            b.End.String(),
		Status:         string(b.Status),
		Kind:           string(b.Kind),
		ClientName:     b.ClientName,
		ClientEmail:    redactEmail(b.ClientEmail),
		AnimalName:     b.AnimalName,
		Reason:         b.Reason,
		CreatedAt:      b.CreatedAt,
		ArchivedAt:     at,
	}
}

// redactEmail keeps the first character of the local part and the domain.
// Input: "alice@example.com" -> Output: "a***@example.com"
func redactEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
