package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/phishguard/internal/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionMetrics_Counters(t *testing.T) {
	m, err := NewDetectionMetrics()
	require.NoError(t, err)

	m.RecordDetection(core.DetectionTypeEmail, core.StatusPhishing)
	m.RecordDetection(core.DetectionTypeEmail, core.StatusPhishing)
	m.RecordDetection(core.DetectionTypeURL, core.StatusSafe)
	m.RecordProviderError(core.DetectionTypeURL)
	m.RecordStoreError("store_event")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.detectionsTotal.WithLabelValues("email", "PHISHING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detectionsTotal.WithLabelValues("url", "SAFE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerErrorsTotal.WithLabelValues("url")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeErrorsTotal.WithLabelValues("store_event")))
}

func TestDetectionMetrics_Handler(t *testing.T) {
	m, err := NewDetectionMetrics()
	require.NoError(t, err)
	m.ObserveProviderDuration(core.DetectionTypeEmail, 250*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `phishguard_provider_duration_seconds_count{type="email"} 1`)
}
