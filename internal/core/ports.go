package core

import (
	"context"
	"time"
)

// JudgmentProvider defines the interface for the external generative model
// that renders a verdict
type JudgmentProvider interface {
	// Judge sends a prompt and returns the model's raw text reply
	Judge(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider and model in logs
	Name() string
}

// DetectionStore defines the interface for persisting detection events and
// reading analytics back
type DetectionStore interface {
	// Init idempotently creates the backing schema
	Init(ctx context.Context) error

	// StoreEvent appends an event and folds it into today's summary as one unit
	StoreEvent(ctx context.Context, event *DetectionEvent) error

	// GetDashboardAnalytics returns today's summary, the 7-day trend and all-time totals
	GetDashboardAnalytics(ctx context.Context) (*DashboardAnalytics, error)

	// GetRecentEvents returns at most limit events, newest first
	GetRecentEvents(ctx context.Context, limit int) ([]RecentEvent, error)

	// Close releases the underlying connection
	Close() error
}

// MetricsRecorder receives detection telemetry
type MetricsRecorder interface {
	RecordDetection(detectionType DetectionType, status Status)
	RecordProviderError(detectionType DetectionType)
	ObserveProviderDuration(detectionType DetectionType, d time.Duration)
	RecordStoreError(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDetection(DetectionType, Status)                {}
func (nopRecorder) RecordProviderError(DetectionType)                    {}
func (nopRecorder) ObserveProviderDuration(DetectionType, time.Duration) {}
func (nopRecorder) RecordStoreError(string)                              {}
