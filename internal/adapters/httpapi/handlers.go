package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

const (
	maxRequestBytes    = 1 << 20
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// Detector runs detections on behalf of the handlers
type Detector interface {
	DetectEmail(ctx context.Context, email core.EmailRequest) (core.DetectionResult, error)
	DetectURL(ctx context.Context, req core.URLRequest) (core.DetectionResult, error)
}

// Analytics serves the read side of the detection store
type Analytics interface {
	GetDashboardAnalytics(ctx context.Context) (*core.DashboardAnalytics, error)
	GetRecentEvents(ctx context.Context, limit int) ([]core.RecentEvent, error)
}

// emailRequest uses pointers so that a present but empty field is accepted
// while an absent one fails validation
type emailRequest struct {
	From    *string `json:"from" validate:"required"`
	Subject *string `json:"subject" validate:"required"`
	Body    *string `json:"body" validate:"required"`
}

type urlRequest struct {
	URL *string `json:"url" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// Fixed bodies returned when a detect route fails unexpectedly
var (
	emailFailure = core.DetectionResult{
		Status:     core.StatusSuspicious,
		Confidence: 50,
		Label:      "Detection Error",
		Message:    "Unable to analyze email content. Please try again.",
		Indicators: []string{"System error occurred"},
	}
	urlFailure = core.DetectionResult{
		Status:     core.StatusSuspicious,
		Confidence: 45,
		Label:      "Network Error",
		Message:    "Unable to analyze URL. Please try again.",
		Indicators: []string{"System error occurred"},
	}
)

const (
	msgMissingEmailFields = "Missing required fields: from, subject, body"
	msgMissingURLField    = "Missing required field: url"
	msgAnalyticsFailed    = "Unable to fetch analytics data"
	msgRecentFailed       = "Unable to fetch recent activity"
)

// handlers holds the dependencies of the HTTP endpoints
type handlers struct {
	detector    Detector
	analytics   Analytics
	validate    *validator.Validate
	serviceName string
	logger      *zap.Logger
	now         func() time.Time
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.now().Format(time.RFC3339),
		Service:   h.serviceName,
	})
}

func (h *handlers) detectEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := h.bind(w, r, &req); err != nil {
		h.logger.Debug("Rejected email detection request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMissingEmailFields})
		return
	}

	result, err := h.detector.DetectEmail(r.Context(), core.EmailRequest{
		From:    *req.From,
		Subject: *req.Subject,
		Body:    *req.Body,
	})
	if err != nil {
		h.logger.Error("Email detection failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, emailFailure)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) detectURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := h.bind(w, r, &req); err != nil {
		h.logger.Debug("Rejected URL detection request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMissingURLField})
		return
	}

	result, err := h.detector.DetectURL(r.Context(), core.URLRequest{URL: *req.URL})
	if err != nil {
		h.logger.Error("URL detection failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, urlFailure)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.analytics.GetDashboardAnalytics(r.Context())
	if err != nil {
		h.logger.Error("Failed to load dashboard analytics", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgAnalyticsFailed})
		return
	}
	if analytics == nil {
		analytics = core.EmptyDashboard()
	}

	writeJSON(w, http.StatusOK, analytics)
}

// recent serves GET /api/analytics/recent?limit=N, newest first. N defaults
// to 10 and is capped at 100.
func (h *handlers) recent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	events, err := h.analytics.GetRecentEvents(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load recent activity", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgRecentFailed})
		return
	}
	if events == nil {
		events = []core.RecentEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

// bind decodes a single JSON object into dst and validates it
func (h *handlers) bind(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid json body: trailing data")
	}

	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// parseLimit reads the recent-activity limit. Missing, unparsable or
// non-positive values use the default; large values are capped.
func parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultRecentLimit
	}
	return min(limit, maxRecentLimit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
