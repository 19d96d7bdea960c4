// Package funnel serves the admin lead-qualification dashboard: daily
// profile cohorts from Postgres plus an extraction-latency snapshot from
// the Prometheus registry.
package funnel

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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ozlistings/oz-ai-platform/pkg/logging"
)

const extractionLatencyMetric = "ozzie_chat_extraction_latency_seconds"

type dashboardDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type dashboardRepo interface {
	LeadCohortByDay(ctx context.Context, start, end time.Time) ([]LeadCohortDay, error)
}

// LeadCohortDay captures lead funnel counts by profile-created day.
type LeadCohortDay struct {
	Day             time.Time `json:"-"`
	DayLabel        string    `json:"day"`
	ProfilesCreated int64     `json:"profiles_created"`
	QualifiedLeads  int64     `json:"qualified_leads"`
}

// ExtractionLatencySnapshot summarizes the extraction histogram.
type ExtractionLatencySnapshot struct {
	Total   int64                     `json:"total"`
	P90Ms   float64                   `json:"p90_ms"`
	P95Ms   float64                   `json:"p95_ms"`
	Buckets []ExtractionLatencyBucket `json:"buckets"`
}

type ExtractionLatencyBucket struct {
	LeSeconds float64 `json:"le_seconds"`
	Label     string  `json:"label,omitempty"`
	Count     int64   `json:"count"`
}

// Dashboard is the GET /admin/funnel response body.
type Dashboard struct {
	PeriodStart       string                    `json:"period_start"`
	PeriodEnd         string                    `json:"period_end"`
	ProfilesCreated   int64                     `json:"profiles_created"`
	QualifiedLeads    int64                     `json:"qualified_leads"`
	QualificationPct  float64                   `json:"qualification_pct"`
	ExtractionLatency ExtractionLatencySnapshot `json:"extraction_latency"`
	Daily             []LeadCohortDay           `json:"daily"`
}

// Repository queries funnel metrics from the database.
type Repository struct {
	db dashboardDB
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("funnel: pgx pool required")
	}
	return &Repository{db: pool}
}

func NewRepositoryWithDB(db dashboardDB) *Repository {
	return &Repository{db: db}
}

// LeadCohortByDay counts profiles created and profiles marked for team
// contact, grouped by creation day.
func (r *Repository) LeadCohortByDay(ctx context.Context, start, end time.Time) ([]LeadCohortDay, error) {
	if end.Before(start) || end.Equal(start) {
		return nil, fmt.Errorf("funnel: invalid time range")
	}

	query := `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*) AS profiles_created,
		       COUNT(*) FILTER (WHERE needs_team_contact) AS qualified_leads
		FROM ozzie_user_profiles
		WHERE created_at >= $1
		  AND created_at < $2
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("funnel: query cohort: %w", err)
	}
	defer rows.Close()

	var results []LeadCohortDay
	for rows.Next() {
		var day time.Time
		var created int64
		var qualified int64
		if err := rows.Scan(&day, &created, &qualified); err != nil {
			return nil, fmt.Errorf("funnel: scan cohort: %w", err)
		}
		results = append(results, LeadCohortDay{
			Day:             day.UTC(),
			DayLabel:        day.UTC().Format("2006-01-02"),
			ProfilesCreated: created,
			QualifiedLeads:  qualified,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("funnel: iterate cohort: %w", err)
	}
	return results, nil
}

// Handler serves the funnel dashboard JSON.
type Handler struct {
	repo     dashboardRepo
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

func NewHandler(repo dashboardRepo, gatherer prometheus.Gatherer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		repo:     repo,
		gatherer: gatherer,
		logger:   logger,
	}
}

// GetFunnel returns the lead funnel dashboard.
// GET /admin/funnel
// Query params:
//   - start: RFC3339 timestamp (optional, requires end)
//   - end: RFC3339 timestamp (optional, requires start)
//   - days: integer window (default 7) when start/end omitted
func (h *Handler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, `{"error":"funnel disabled (db not configured)"}`, http.StatusServiceUnavailable)
		return
	}

	start, end, err := parseWindow(r)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	cohort, err := h.repo.LeadCohortByDay(r.Context(), start, end)
	if err != nil {
		h.logger.Error("failed to query funnel cohort", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	cohort = fillMissingDays(cohort, start, end)

	var createdTotal int64
	var qualifiedTotal int64
	for _, day := range cohort {
		createdTotal += day.ProfilesCreated
		qualifiedTotal += day.QualifiedLeads
	}

	qualificationPct := 0.0
	if createdTotal > 0 {
		qualificationPct = (float64(qualifiedTotal) / float64(createdTotal)) * 100.0
	}

	resp := Dashboard{
		PeriodStart:       start.UTC().Format(time.RFC3339),
		PeriodEnd:         end.UTC().Format(time.RFC3339),
		ProfilesCreated:   createdTotal,
		QualifiedLeads:    qualifiedTotal,
		QualificationPct:  qualificationPct,
		ExtractionLatency: snapshotExtractionLatency(h.gatherer),
		Daily:             cohort,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	startRaw := strings.TrimSpace(q.Get("start"))
	endRaw := strings.TrimSpace(q.Get("end"))
	if (startRaw == "") != (endRaw == "") {
		return time.Time{}, time.Time{}, fmt.Errorf("both start and end must be provided, or neither")
	}
	if startRaw != "" {
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start time, use RFC3339 format")
		}
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end time, use RFC3339 format")
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
		}
		return start.UTC(), end.UTC(), nil
	}

	days := 7
	if raw := strings.TrimSpace(q.Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid days; must be 1-90")
		}
		days = parsed
	}

	now := time.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -days)
	return start, end, nil
}

func fillMissingDays(existing []LeadCohortDay, start, end time.Time) []LeadCohortDay {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	lookup := map[string]LeadCohortDay{}
	for _, d := range existing {
		lookup[d.DayLabel] = d
	}

	var filled []LeadCohortDay
	for day := startDay; day.Before(endDay); day = day.AddDate(0, 0, 1) {
		label := day.Format("2006-01-02")
		if d, ok := lookup[label]; ok {
			filled = append(filled, d)
			continue
		}
		filled = append(filled, LeadCohortDay{Day: day, DayLabel: label})
	}
	return filled
}

func snapshotExtractionLatency(gatherer prometheus.Gatherer) ExtractionLatencySnapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return ExtractionLatencySnapshot{}
	}

	var family *dto.MetricFamily
	for _, mf := range mfs {
		if mf != nil && mf.GetName() == extractionLatencyMetric {
			family = mf
			break
		}
	}
	if family == nil {
		return ExtractionLatencySnapshot{}
	}

	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64

	for _, metric := range family.Metric {
		if metric == nil {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return ExtractionLatencySnapshot{}
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	buckets := make([]ExtractionLatencyBucket, 0, len(uppers))
	var prev uint64
	var lastFiniteUpper float64
	for _, upper := range uppers {
		cum := cumulativeByUpper[upper]
		if math.IsInf(upper, 1) {
			overflow := int64(0)
			if cum >= prev {
				overflow = int64(cum - prev)
			} else {
				overflow = int64(cum)
			}
			if overflow > 0 {
				buckets = append(buckets, ExtractionLatencyBucket{
					LeSeconds: lastFiniteUpper,
					Label:     fmt.Sprintf(">%s", formatSeconds(lastFiniteUpper)),
					Count:     overflow,
				})
			}
			prev = cum
			continue
		}

		lastFiniteUpper = upper
		count := int64(0)
		if cum >= prev {
			count = int64(cum - prev)
		} else {
			count = int64(cum)
		}
		buckets = append(buckets, ExtractionLatencyBucket{
			LeSeconds: upper,
			Count:     count,
		})
		prev = cum
	}

	p90 := histogramQuantile(0.90, sampleCount, uppers, cumulativeByUpper)
	p95 := histogramQuantile(0.95, sampleCount, uppers, cumulativeByUpper)

	return ExtractionLatencySnapshot{
		Total:   int64(sampleCount),
		P90Ms:   p90 * 1000.0,
		P95Ms:   p95 * 1000.0,
		Buckets: buckets,
	}
}

func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	if total == 0 || q <= 0 {
		return 0
	}
	if q >= 1 {
		for i := len(uppers) - 1; i >= 0; i-- {
			if !math.IsInf(uppers[i], 1) {
				return uppers[i]
			}
		}
		return 0
	}

	target := q * float64(total)
	var prevUpper float64
	var prevCum float64

	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}

		bucketCount := cum - prevCum
		if bucketCount <= 0 || upper == prevUpper {
			return upper
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}

		fraction := (target - prevCum) / bucketCount
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}

		lower := prevUpper
		return lower + fraction*(upper-lower)
	}

	return uppers[len(uppers)-1]
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	if seconds < 1 {
		return fmt.Sprintf("%.2fs", seconds)
	}
	if seconds < 10 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	return fmt.Sprintf("%.0fs", seconds)
}
