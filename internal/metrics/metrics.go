// Package metrics exposes detection telemetry in Prometheus format
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mikey/phishguard/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DetectionMetrics contains Prometheus metrics for the detection pipeline
type DetectionMetrics struct {
	registry *prometheus.Registry

	detectionsTotal     *prometheus.CounterVec
	providerErrorsTotal *prometheus.CounterVec
	providerDuration    *prometheus.HistogramVec
	storeErrorsTotal    *prometheus.CounterVec
}

var _ core.MetricsRecorder = (*DetectionMetrics)(nil)

// NewDetectionMetrics creates the detection collectors on a private registry
func NewDetectionMetrics() (*DetectionMetrics, error) {
	m := &DetectionMetrics{registry: prometheus.NewRegistry()}

	m.detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_detections_total",
			Help: "Total number of completed detections",
		},
		[]string{"type", "status"},
	)

	m.providerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_provider_errors_total",
			Help: "Total number of failed or unparsable judgment provider calls",
		},
		[]string{"type"},
	)

	m.providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishguard_provider_duration_seconds",
			Help:    "Time taken by judgment provider calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"type"},
	)

	m.storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_store_errors_total",
			Help: "Total number of detection store failures",
		},
		[]string{"operation"},
	)

	toRegister := []prometheus.Collector{
		m.detectionsTotal,
		m.providerErrorsTotal,
		m.providerDuration,
		m.storeErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordDetection counts one completed detection
func (m *DetectionMetrics) RecordDetection(detectionType core.DetectionType, status core.Status) {
	m.detectionsTotal.WithLabelValues(string(detectionType), string(status)).Inc()
}

// RecordProviderError counts a provider call that produced no usable verdict
func (m *DetectionMetrics) RecordProviderError(detectionType core.DetectionType) {
	m.providerErrorsTotal.WithLabelValues(string(detectionType)).Inc()
}

// ObserveProviderDuration records the latency of one provider call
func (m *DetectionMetrics) ObserveProviderDuration(detectionType core.DetectionType, d time.Duration) {
	m.providerDuration.WithLabelValues(string(detectionType)).Observe(d.Seconds())
}

// RecordStoreError counts a failed store operation
func (m *DetectionMetrics) RecordStoreError(operation string) {
	m.storeErrorsTotal.WithLabelValues(operation).Inc()
}

// Registry returns the underlying registry
func (m *DetectionMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *DetectionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
