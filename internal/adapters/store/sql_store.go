package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no summary row exists for a date
var ErrNotFound = errors.New("summary not found")

// trendDays is the number of calendar days covered by the week trend, today included
const trendDays = 7

const summaryColumns = `date, total_scans, safe_count, suspicious_count, phishing_count, email_scans, url_scans, avg_confidence`

// sqlStore holds the read queries shared by the SQL-backed stores. Both
// drivers accept ? placeholders, so only writes and schema differ.
type sqlStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// today returns the key of the current calendar date
func (s *sqlStore) today() time.Time {
	return core.Day(s.now())
}

// GetDashboardAnalytics returns today's summary, the week trend and all-time totals
func (s *sqlStore) GetDashboardAnalytics(ctx context.Context) (*core.DashboardAnalytics, error) {
	today := s.today()
	analytics := core.EmptyDashboard()

	summary, err := s.summaryForDate(ctx, s.db, today)
	switch {
	case err == nil:
		analytics.Today = *summary
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	trend, err := s.summariesBetween(ctx, today.AddDate(0, 0, -(trendDays-1)), today)
	if err != nil {
		return nil, err
	}
	analytics.WeekTrend = trend

	totals, err := s.totals(ctx)
	if err != nil {
		return nil, err
	}
	analytics.Totals = *totals

	return analytics, nil
}

// GetRecentEvents returns at most limit events, newest first
func (s *sqlStore) GetRecentEvents(ctx context.Context, limit int) ([]core.RecentEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, detection_type, input_data, status, confidence, created_at
		FROM detections
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent detections: %w", err)
	}
	defer rows.Close()

	events := make([]core.RecentEvent, 0, limit)
	for rows.Next() {
		var (
			event     core.RecentEvent
			input     string
			createdAt any
		)
		if err := rows.Scan(&event.ID, &event.DetectionType, &input, &event.Status, &event.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection row: %w", err)
		}
		if event.CreatedAt, err = asTime(createdAt); err != nil {
			return nil, err
		}
		event.DisplayText = core.DisplayText(event.DetectionType, input)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detection rows: %w", err)
	}

	return events, nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// queryRower is satisfied by both *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// summaryForDate loads the summary row of one date
func (s *sqlStore) summaryForDate(ctx context.Context, q queryRower, date time.Time) (*core.DailySummary, error) {
	row := q.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM analytics_summary WHERE date = ?`, date.Format(core.DateLayout))

	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summary: %w", err)
	}
	return summary, nil
}

// summariesBetween loads the summaries of an inclusive date range, newest first
func (s *sqlStore) summariesBetween(ctx context.Context, from, to time.Time) ([]core.DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM analytics_summary
		WHERE date >= ? AND date <= ?
		ORDER BY date DESC
	`, from.Format(core.DateLayout), to.Format(core.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query summary trend: %w", err)
	}
	defer rows.Close()

	trend := []core.DailySummary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		trend = append(trend, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary rows: %w", err)
	}

	return trend, nil
}

// totals aggregates every stored event
func (s *sqlStore) totals(ctx context.Context) (*core.Totals, error) {
	var totals core.Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'SAFE' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'SUSPICIOUS' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'PHISHING' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(confidence), 0)
		FROM detections
	`).Scan(&totals.TotalDetections, &totals.TotalSafe, &totals.TotalSuspicious, &totals.TotalPhishing, &totals.AvgConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	return &totals, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*core.DailySummary, error) {
	var (
		summary core.DailySummary
		date    any
	)
	err := row.Scan(&date, &summary.TotalScans, &summary.SafeCount, &summary.SuspiciousCount,
		&summary.PhishingCount, &summary.EmailScans, &summary.URLScans, &summary.AvgConfidence)
	if err != nil {
		return nil, err
	}
	if summary.Date, err = asDate(date); err != nil {
		return nil, err
	}
	return &summary, nil
}

// encodeResult serializes the canonical verdict stored with each event
func encodeResult(result core.DetectionResult) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to serialize detection result: %w", err)
	}
	return string(b), nil
}

// asTime converts a driver timestamp value. MySQL yields time.Time with
// parseTime enabled; SQLite stores unix nanoseconds.
func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Local(), nil
	case int64:
		return time.Unix(0, t).Local(), nil
	case []byte:
		return parseTimestamp(string(t))
	case string:
		return parseTimestamp(t)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(0, n).Local(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// asDate converts a driver date value to local midnight
func asDate(v any) (time.Time, error) {
	var s string
	switch d := v.(type) {
	case time.Time:
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.Local), nil
	case []byte:
		s = string(d)
	case string:
		s = d
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}

	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	t, err := time.ParseInLocation(core.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
