package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the DetectionStore interface
type MemoryStore struct {
	mu        sync.RWMutex
	events    []core.DetectionEvent
	summaries map[string]core.DailySummary
	nextID    int64
	logger    *zap.Logger
	now       func() time.Time
}

var _ core.DetectionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger, opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		summaries: make(map[string]core.DailySummary),
		logger:    logger,
		now:       o.now,
	}
}

// Init is a no-op; the in-memory store has no schema
func (m *MemoryStore) Init(ctx context.Context) error {
	m.logger.Info("Using in-memory detection store; history is lost on restart")
	return nil
}

// StoreEvent appends the event and folds it into its day's summary
func (m *MemoryStore) StoreEvent(ctx context.Context, event *core.DetectionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = m.now()
	}
	m.nextID++
	event.ID = m.nextID

	stored := *event
	stored.Result.Indicators = append([]string(nil), event.Result.Indicators...)
	m.events = append(m.events, stored)

	day := core.Day(event.CreatedAt)
	key := day.Format(core.DateLayout)
	var prior *core.DailySummary
	if summary, ok := m.summaries[key]; ok {
		prior = &summary
	}
	next := core.ApplyEvent(prior, event.DetectionType, event.Result.Status, event.Result.Confidence)
	next.Date = day
	m.summaries[key] = next

	return nil
}

// GetDashboardAnalytics returns today's summary, the week trend and all-time totals
func (m *MemoryStore) GetDashboardAnalytics(ctx context.Context) (*core.DashboardAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	today := core.Day(m.now())
	analytics := core.EmptyDashboard()

	if summary, ok := m.summaries[today.Format(core.DateLayout)]; ok {
		analytics.Today = summary
	}

	for i := 0; i < trendDays; i++ {
		day := today.AddDate(0, 0, -i)
		if summary, ok := m.summaries[day.Format(core.DateLayout)]; ok {
			analytics.WeekTrend = append(analytics.WeekTrend, summary)
		}
	}

	var sum int
	for _, event := range m.events {
		analytics.Totals.TotalDetections++
		sum += event.Result.Confidence
		switch event.Result.Status {
		case core.StatusSafe:
			analytics.Totals.TotalSafe++
		case core.StatusSuspicious:
			analytics.Totals.TotalSuspicious++
		case core.StatusPhishing:
			analytics.Totals.TotalPhishing++
		}
	}
	if analytics.Totals.TotalDetections > 0 {
		analytics.Totals.AvgConfidence = float64(sum) / float64(analytics.Totals.TotalDetections)
	}

	return analytics, nil
}

// GetRecentEvents returns at most limit events, newest first
func (m *MemoryStore) GetRecentEvents(ctx context.Context, limit int) ([]core.RecentEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	ordered := make([]core.DetectionEvent, len(m.events))
	copy(ordered, m.events)
	m.mu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	if limit < len(ordered) {
		ordered = ordered[:max(limit, 0)]
	}

	recent := make([]core.RecentEvent, 0, len(ordered))
	for _, event := range ordered {
		recent = append(recent, core.RecentEvent{
			ID:            event.ID,
			DetectionType: event.DetectionType,
			Status:        event.Result.Status,
			Confidence:    event.Result.Confidence,
			CreatedAt:     event.CreatedAt,
			DisplayText:   core.DisplayText(event.DetectionType, event.InputData),
		})
	}

	return recent, nil
}

// Close releases nothing
func (m *MemoryStore) Close() error {
	return nil
}
