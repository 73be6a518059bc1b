package core

import (
	"encoding/json"
	"math"
	"time"
)

// DetectionType identifies what kind of input a detection was run on
type DetectionType string

const (
	// DetectionTypeEmail is an email (sender, subject, body) detection
	DetectionTypeEmail DetectionType = "email"
	// DetectionTypeURL is a single URL detection
	DetectionTypeURL DetectionType = "url"
)

// Status is the canonical verdict of a detection
type Status string

const (
	StatusSafe       Status = "SAFE"
	StatusSuspicious Status = "SUSPICIOUS"
	StatusPhishing   Status = "PHISHING"
)

// Valid reports whether s is one of the three canonical verdicts
func (s Status) Valid() bool {
	switch s {
	case StatusSafe, StatusSuspicious, StatusPhishing:
		return true
	}
	return false
}

// EmailRequest is the payload of an email detection. Field order matches the
// serialized input stored with each event.
type EmailRequest struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// URLRequest is the payload of a URL detection
type URLRequest struct {
	URL string `json:"url"`
}

// DetectionResult is the canonical verdict returned to callers and persisted
// with every event
type DetectionResult struct {
	Status     Status   `json:"status"`
	Confidence int      `json:"confidence"`
	Label      string   `json:"label"`
	Message    string   `json:"message"`
	Indicators []string `json:"indicators"`
}

// DetectionEvent is one persisted detection request/response pair
type DetectionEvent struct {
	ID            int64
	DetectionType DetectionType
	InputData     string
	Result        DetectionResult
	CreatedAt     time.Time
}

// DailySummary holds the aggregated counters for one calendar date
type DailySummary struct {
	Date            time.Time
	TotalScans      int
	SafeCount       int
	SuspiciousCount int
	PhishingCount   int
	EmailScans      int
	URLScans        int
	AvgConfidence   float64
}

// MarshalJSON renders the date as YYYY-MM-DD and the average with two decimals
func (d DailySummary) MarshalJSON() ([]byte, error) {
	var date *string
	if !d.Date.IsZero() {
		s := d.Date.Format(DateLayout)
		date = &s
	}
	return json.Marshal(struct {
		Date            *string `json:"date,omitempty"`
		TotalScans      int     `json:"total_scans"`
		SafeCount       int     `json:"safe_count"`
		SuspiciousCount int     `json:"suspicious_count"`
		PhishingCount   int     `json:"phishing_count"`
		EmailScans      int     `json:"email_scans"`
		URLScans        int     `json:"url_scans"`
		AvgConfidence   float64 `json:"avg_confidence"`
	}{
		Date:            date,
		TotalScans:      d.TotalScans,
		SafeCount:       d.SafeCount,
		SuspiciousCount: d.SuspiciousCount,
		PhishingCount:   d.PhishingCount,
		EmailScans:      d.EmailScans,
		URLScans:        d.URLScans,
		AvgConfidence:   Round2(d.AvgConfidence),
	})
}

// Totals are all-time counts across every stored event
type Totals struct {
	TotalDetections int     `json:"total_detections"`
	TotalSafe       int     `json:"total_safe"`
	TotalSuspicious int     `json:"total_suspicious"`
	TotalPhishing   int     `json:"total_phishing"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

// MarshalJSON rounds the average to two decimals
func (t Totals) MarshalJSON() ([]byte, error) {
	type plain Totals
	p := plain(t)
	p.AvgConfidence = Round2(p.AvgConfidence)
	return json.Marshal(p)
}

// DashboardAnalytics is the payload served by the dashboard endpoint
type DashboardAnalytics struct {
	Today     DailySummary   `json:"today"`
	WeekTrend []DailySummary `json:"week_trend"`
	Totals    Totals         `json:"totals"`
}

// EmptyDashboard returns the zero-valued dashboard used when no history exists
func EmptyDashboard() *DashboardAnalytics {
	return &DashboardAnalytics{WeekTrend: []DailySummary{}}
}

// RecentEvent is a condensed view of a stored event for activity feeds
type RecentEvent struct {
	ID            int64         `json:"id"`
	DetectionType DetectionType `json:"detection_type"`
	Status        Status        `json:"status"`
	Confidence    int           `json:"confidence"`
	CreatedAt     time.Time     `json:"created_at"`
	DisplayText   string        `json:"display_text"`
}

// DateLayout is the layout used for summary dates in storage and JSON
const DateLayout = "2006-01-02"

// Day truncates t to midnight of its calendar date in t's location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Round2 rounds v to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
