package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey/phishguard/internal/adapters/store"
	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	reply string
	err   error
	calls atomic.Int32
}

func (p *fakeProvider) Judge(ctx context.Context, prompt string) (string, error) {
	p.calls.Add(1)
	return p.reply, p.err
}

func (p *fakeProvider) Name() string { return "fake" }

type panickingDetector struct{}

func (panickingDetector) DetectEmail(context.Context, core.EmailRequest) (core.DetectionResult, error) {
	panic("boom")
}

func (panickingDetector) DetectURL(context.Context, core.URLRequest) (core.DetectionResult, error) {
	panic("boom")
}

type brokenAnalytics struct {
	lastLimit int
}

func (b *brokenAnalytics) GetDashboardAnalytics(context.Context) (*core.DashboardAnalytics, error) {
	return nil, errors.New("connection refused")
}

func (b *brokenAnalytics) GetRecentEvents(_ context.Context, limit int) ([]core.RecentEvent, error) {
	b.lastLimit = limit
	return nil, errors.New("connection refused")
}

type recordingAnalytics struct {
	lastLimit int
}

func (r *recordingAnalytics) GetDashboardAnalytics(context.Context) (*core.DashboardAnalytics, error) {
	return core.EmptyDashboard(), nil
}

func (r *recordingAnalytics) GetRecentEvents(_ context.Context, limit int) ([]core.RecentEvent, error) {
	r.lastLimit = limit
	return nil, nil
}

var testServerConfig = config.ServerConfig{
	ListenAddress:  "127.0.0.1:0",
	ServiceName:    "PhishGuard AI Backend",
	AllowedOrigins: []string{"*"},
}

func newTestServer(t *testing.T, provider core.JudgmentProvider) (http.Handler, *store.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	memory := store.NewMemoryStore(logger)
	service := core.NewDetectionService(provider, memory, nil, nil, nil, logger, core.ServiceConfig{})
	return NewServer(testServerConfig, service, memory, nil, logger).Handler(), memory
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{})

	rec := do(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "PhishGuard AI Backend", resp.Service)
	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)
}

func TestDetectEmail_MissingFieldIsRejected(t *testing.T) {
	provider := &fakeProvider{reply: `{"status":"SAFE"}`}
	h, memory := newTestServer(t, provider)

	for _, body := range []string{
		`{"from":"a@b.c","subject":"hi"}`,
		`{"from":"a@b.c","subject":"hi","body":null}`,
		`not json`,
		`[]`,
	} {
		rec := do(t, h, http.MethodPost, "/api/detect/email", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Missing required fields: from, subject, body"}`, rec.Body.String())
	}

	rec := do(t, h, http.MethodPost, "/api/detect/email", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, provider.calls.Load())
	events, err := memory.GetRecentEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDetectEmail_EmptyFieldsAreAccepted(t *testing.T) {
	provider := &fakeProvider{reply: `{"status":"SAFE","confidence":88,"label":"Benign","message":"ok","indicators":[]}`}
	h, memory := newTestServer(t, provider)

	rec := do(t, h, http.MethodPost, "/api/detect/email", `{"from":"","subject":"","body":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[core.DetectionResult](t, rec)
	assert.Equal(t, core.StatusSafe, result.Status)
	assert.Equal(t, 88, result.Confidence)

	events, err := memory.GetRecentEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDetectEmail_UnparsableProviderReplyFallsBack(t *testing.T) {
	h, memory := newTestServer(t, &fakeProvider{reply: "I think this email is probably fine."})

	rec := do(t, h, http.MethodPost, "/api/detect/email", `{"from":"a@b.c","subject":"Invoice","body":"see attached"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{
		"status": "SUSPICIOUS",
		"confidence": 50,
		"label": "Analysis Error",
		"message": "Could not parse AI response",
		"indicators": ["System error - manual review recommended"]
	}`, rec.Body.String())

	events, err := memory.GetRecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Invoice", events[0].DisplayText)
}

func TestDetectURL_ProviderErrorFallsBack(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{err: errors.New("quota exceeded")})

	rec := do(t, h, http.MethodPost, "/api/detect/url", `{"url":"http://paypa1.com/login"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[core.DetectionResult](t, rec)
	assert.Equal(t, core.StatusSuspicious, result.Status)
	assert.Equal(t, "Analysis failed due to system error", result.Message)
}

func TestDetectURL_MissingURL(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{})

	rec := do(t, h, http.MethodPost, "/api/detect/url", `{"link":"http://x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing required field: url"}`, rec.Body.String())
}

func TestDetect_PanicsBecomeFixedPayloads(t *testing.T) {
	logger := zap.NewNop()
	h := NewServer(testServerConfig, panickingDetector{}, store.NewMemoryStore(logger), nil, logger).Handler()

	rec := do(t, h, http.MethodPost, "/api/detect/email", `{"from":"a","subject":"b","body":"c"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{
		"status": "SUSPICIOUS",
		"confidence": 50,
		"label": "Detection Error",
		"message": "Unable to analyze email content. Please try again.",
		"indicators": ["System error occurred"]
	}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/detect/url", `{"url":"http://x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{
		"status": "SUSPICIOUS",
		"confidence": 45,
		"label": "Network Error",
		"message": "Unable to analyze URL. Please try again.",
		"indicators": ["System error occurred"]
	}`, rec.Body.String())
}

func TestDashboard_EmptyStore(t *testing.T) {
	h, _ := newTestServer(t, &fakeProvider{})

	rec := do(t, h, http.MethodGet, "/api/analytics/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"today": {"total_scans":0,"safe_count":0,"suspicious_count":0,"phishing_count":0,"email_scans":0,"url_scans":0,"avg_confidence":0},
		"week_trend": [],
		"totals": {"total_detections":0,"total_safe":0,"total_suspicious":0,"total_phishing":0,"avg_confidence":0}
	}`, rec.Body.String())
}

func TestDashboard_AfterDetections(t *testing.T) {
	provider := &fakeProvider{reply: `{"status":"PHISHING","confidence":90}`}
	h, _ := newTestServer(t, provider)

	do(t, h, http.MethodPost, "/api/detect/url", `{"url":"http://a"}`)
	provider.reply = `{"status":"SAFE","confidence":75}`
	do(t, h, http.MethodPost, "/api/detect/email", `{"from":"a","subject":"b","body":"c"}`)

	rec := do(t, h, http.MethodGet, "/api/analytics/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Today struct {
			Date          string  `json:"date"`
			TotalScans    int     `json:"total_scans"`
			EmailScans    int     `json:"email_scans"`
			URLScans      int     `json:"url_scans"`
			AvgConfidence float64 `json:"avg_confidence"`
		} `json:"today"`
		WeekTrend []json.RawMessage `json:"week_trend"`
		Totals    struct {
			TotalDetections int `json:"total_detections"`
			TotalPhishing   int `json:"total_phishing"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, time.Now().Format(core.DateLayout), body.Today.Date)
	assert.Equal(t, 2, body.Today.TotalScans)
	assert.Equal(t, 1, body.Today.EmailScans)
	assert.Equal(t, 1, body.Today.URLScans)
	assert.Equal(t, 82.5, body.Today.AvgConfidence)
	assert.Len(t, body.WeekTrend, 1)
	assert.Equal(t, 2, body.Totals.TotalDetections)
	assert.Equal(t, 1, body.Totals.TotalPhishing)
}

func TestAnalytics_ReadFailures(t *testing.T) {
	logger := zap.NewNop()
	h := NewServer(testServerConfig, panickingDetector{}, &brokenAnalytics{}, nil, logger).Handler()

	rec := do(t, h, http.MethodGet, "/api/analytics/dashboard", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Unable to fetch analytics data"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/analytics/recent", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Unable to fetch recent activity"}`, rec.Body.String())
}

func TestRecent_LimitHandling(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"?limit=5", 5},
		{"?limit=abc", 10},
		{"?limit=0", 10},
		{"?limit=-3", 10},
		{"?limit=1000", 100},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			analytics := &recordingAnalytics{}
			h := NewServer(testServerConfig, panickingDetector{}, analytics, nil, zap.NewNop()).Handler()

			rec := do(t, h, http.MethodGet, "/api/analytics/recent"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `[]`, rec.Body.String())
			assert.Equal(t, tt.want, analytics.lastLimit)
		})
	}
}

func TestRecent_ReturnsNewestFirst(t *testing.T) {
	provider := &fakeProvider{reply: `{"status":"SAFE","confidence":60}`}
	h, _ := newTestServer(t, provider)

	for i := 0; i < 7; i++ {
		do(t, h, http.MethodPost, "/api/detect/url", `{"url":"http://example.com/`+string(rune('a'+i))+`"}`)
	}

	rec := do(t, h, http.MethodGet, "/api/analytics/recent?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	events := decode[[]core.RecentEvent](t, rec)
	require.Len(t, events, 5)
	assert.Equal(t, "http://example.com/g", events[0].DisplayText)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i-1].ID, events[i].ID)
	}
}

func TestMetricsRouteIsOptional(t *testing.T) {
	logger := zap.NewNop()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	h := NewServer(testServerConfig, panickingDetector{}, &recordingAnalytics{}, metrics, logger).Handler()

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}
