package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wolfman30/vetclinic-platform/internal/caltime"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

const computeLatencyMetric = "vetclinic_availability_compute_seconds"

type dashboardDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type dashboardRepo interface {
	DailyCounts(ctx context.Context, clinicID string, from, to caltime.Date) ([]DayCounts, error)
}

// DayCounts holds booked cells per day. A two-animal appointment counts twice.
type DayCounts struct {
	Date         caltime.Date `json:"date"`
	Appointments int64        `json:"appointments"`
	Blocks       int64        `json:"blocks"`
	Cancelled    int64        `json:"cancelled"`
	NoShows      int64        `json:"no_shows"`
}

// LatencySnapshot summarizes the availability compute histogram.
type LatencySnapshot struct {
	Total int64   `json:"total"`
	P90Ms float64 `json:"p90_ms"`
	P95Ms float64 `json:"p95_ms"`
}

type ClinicDashboard struct {
	ClinicID            string          `json:"clinic_id"`
	PeriodStart         string          `json:"period_start"`
	PeriodEnd           string          `json:"period_end"`
	Appointments        int64           `json:"appointments"`
	Blocks              int64           `json:"blocks"`
	Cancelled           int64           `json:"cancelled"`
	NoShows             int64           `json:"no_shows"`
	NoShowPct           float64         `json:"no_show_pct"`
	AvailabilityLatency LatencySnapshot `json:"availability_latency"`
	Daily               []DayCounts     `json:"daily"`
}

// DashboardRepository aggregates booking rows per day.
type DashboardRepository struct {
	db dashboardDB
}

func NewDashboardRepository(db dashboardDB) *DashboardRepository {
	if db == nil {
		panic("planning: db required for dashboard")
	}
	return &DashboardRepository{db: db}
}

func (r *DashboardRepository) DailyCounts(ctx context.Context, clinicID string, from, to caltime.Date) ([]DayCounts, error) {
	clinicID = strings.TrimSpace(clinicID)
	if clinicID == "" {
		return nil, fmt.Errorf("planning dashboard: clinic_id required")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("planning dashboard: invalid date range")
	}

	rows, err := r.db.Query(ctx, `
		SELECT to_char(slot_date, 'YYYY-MM-DD'),
		       COUNT(*) FILTER (WHERE NOT is_blocked AND status NOT IN ('cancelled', 'no_show')),
		       COUNT(*) FILTER (WHERE is_blocked AND status <> 'cancelled'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COUNT(*) FILTER (WHERE status = 'no_show')
		FROM bookings
		WHERE clinic_id = $1
		  AND slot_date BETWEEN $2::date AND $3::date
		GROUP BY slot_date
		ORDER BY slot_date
	`, clinicID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("planning dashboard: query counts: %w", err)
	}
	defer rows.Close()

	var out []DayCounts
	for rows.Next() {
		var (
			raw string
			c   DayCounts
		)
		if err := rows.Scan(&raw, &c.Appointments, &c.Blocks, &c.Cancelled, &c.NoShows); err != nil {
			return nil, fmt.Errorf("planning dashboard: scan counts: %w", err)
		}
		if c.Date, err = caltime.ParseDate(raw); err != nil {
			return nil, fmt.Errorf("planning dashboard: scan counts: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("planning dashboard: iterate counts: %w", err)
	}
	return out, nil
}

// DashboardHandler serves per-clinic activity and engine latency.
type DashboardHandler struct {
	repo     dashboardRepo
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	now      func() time.Time
}

func NewDashboardHandler(repo dashboardRepo, gatherer prometheus.Gatherer, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &DashboardHandler{
		repo:     repo,
		gatherer: gatherer,
		logger:   logger,
		now:      time.Now,
	}
}

// GetDashboard returns booking activity for a clinic.
// GET /clinics/{clinicID}/dashboard
// Query params:
//   - start, end: YYYY-MM-DD, inclusive (both or neither)
//   - days: window ending today (default 7) when start/end omitted
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if strings.TrimSpace(clinicID) == "" {
		http.Error(w, `{"error":"clinic_id required"}`, http.StatusBadRequest)
		return
	}
	if h.repo == nil {
		http.Error(w, `{"error":"dashboard disabled (db not configured)"}`, http.StatusServiceUnavailable)
		return
	}

	from, to, err := parseDashboardRange(r, caltime.DateOf(h.now().UTC()))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	daily, err := h.repo.DailyCounts(r.Context(), clinicID, from, to)
	if err != nil {
		h.logger.Error("failed to query dashboard counts", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	daily = fillMissingDays(daily, from, to)

	resp := ClinicDashboard{
		ClinicID:            clinicID,
		PeriodStart:         from.String(),
		PeriodEnd:           to.String(),
		AvailabilityLatency: snapshotComputeLatency(h.gatherer),
		Daily:               daily,
	}
	for _, d := range daily {
		resp.Appointments += d.Appointments
		resp.Blocks += d.Blocks
		resp.Cancelled += d.Cancelled
		resp.NoShows += d.NoShows
	}
	if attended := resp.Appointments + resp.NoShows; attended > 0 {
		resp.NoShowPct = float64(resp.NoShows) / float64(attended) * 100.0
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func parseDashboardRange(r *http.Request, today caltime.Date) (caltime.Date, caltime.Date, error) {
	q := r.URL.Query()

	startRaw := strings.TrimSpace(q.Get("start"))
	endRaw := strings.TrimSpace(q.Get("end"))
	if (startRaw == "") != (endRaw == "") {
		return caltime.Date{}, caltime.Date{}, fmt.Errorf("both start and end must be provided, or neither")
	}
	if startRaw != "" {
		from, err := caltime.ParseDate(startRaw)
		if err != nil {
			return caltime.Date{}, caltime.Date{}, fmt.Errorf("invalid start date, use YYYY-MM-DD")
		}
		to, err := caltime.ParseDate(endRaw)
		if err != nil {
			return caltime.Date{}, caltime.Date{}, fmt.Errorf("invalid end date, use YYYY-MM-DD")
		}
		if to.Before(from) {
			return caltime.Date{}, caltime.Date{}, fmt.Errorf("end must not be before start")
		}
		if from.DaysUntil(to) >= 366 {
			return caltime.Date{}, caltime.Date{}, fmt.Errorf("range must not exceed 366 days")
		}
		return from, to, nil
	}

	days := 7
	if raw := strings.TrimSpace(q.Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			return caltime.Date{}, caltime.Date{}, fmt.Errorf("invalid days; must be 1-90")
		}
		days = parsed
	}
	return today.AddDays(1 - days), today, nil
}

func fillMissingDays(existing []DayCounts, from, to caltime.Date) []DayCounts {
	byDate := make(map[caltime.Date]DayCounts, len(existing))
	for _, d := range existing {
		byDate[d.Date] = d
	}
	out := make([]DayCounts, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		if found, ok := byDate[d]; ok {
			out = append(out, found)
			continue
		}
		out = append(out, DayCounts{Date: d})
	}
	return out
}

func snapshotComputeLatency(gatherer prometheus.Gatherer) LatencySnapshot {
	mfs, err := gatherer.Gather()
	if err != nil {
		return LatencySnapshot{}
	}
	var hist *dto.Histogram
	for _, mf := range mfs {
		if mf.GetName() != computeLatencyMetric || len(mf.GetMetric()) == 0 {
			continue
		}
		hist = mf.GetMetric()[0].GetHistogram()
		break
	}
	if hist == nil || hist.GetSampleCount() == 0 {
		return LatencySnapshot{}
	}

	buckets := make([]bucket, 0, len(hist.GetBucket())+1)
	for _, b := range hist.GetBucket() {
		buckets = append(buckets, bucket{upper: b.GetUpperBound(), cumulative: b.GetCumulativeCount()})
	}
	buckets = append(buckets, bucket{upper: math.Inf(1), cumulative: hist.GetSampleCount()})
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].upper < buckets[j].upper })

	return LatencySnapshot{
		Total: int64(hist.GetSampleCount()),
		P90Ms: quantile(0.90, hist.GetSampleCount(), buckets) * 1000.0,
		P95Ms: quantile(0.95, hist.GetSampleCount(), buckets) * 1000.0,
	}
}

type bucket struct {
	upper      float64
	cumulative uint64
}

// quantile interpolates linearly inside the bucket holding the q-th sample.
// Samples past the last finite bound report that bound.
func quantile(q float64, total uint64, buckets []bucket) float64 {
	target := q * float64(total)
	var lower, below float64
	for _, b := range buckets {
		cum := float64(b.cumulative)
		if cum < target {
			lower, below = b.upper, cum
			continue
		}
		if math.IsInf(b.upper, 1) {
			return lower
		}
		if cum == below {
			return b.upper
		}
		return lower + (target-below)/(cum-below)*(b.upper-lower)
	}
	return lower
}
