package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyEvent_FromAbsentSummary(t *testing.T) {
	got := ApplyEvent(nil, DetectionTypeURL, StatusPhishing, 80)

	assert.Equal(t, DailySummary{
		TotalScans:    1,
		PhishingCount: 1,
		URLScans:      1,
		AvgConfidence: 80,
	}, got)
}

func TestApplyEvent_DoesNotMutatePrior(t *testing.T) {
	prior := &DailySummary{TotalScans: 2, SafeCount: 2, EmailScans: 2, AvgConfidence: 40}

	got := ApplyEvent(prior, DetectionTypeEmail, StatusSafe, 70)

	assert.Equal(t, 2, prior.TotalScans)
	assert.Equal(t, 3, got.TotalScans)
	assert.Equal(t, 3, got.SafeCount)
	assert.InDelta(t, 50.0, got.AvgConfidence, 1e-9)
}

func TestApplyEvent_UnknownStatusCountsAsSuspicious(t *testing.T) {
	got := ApplyEvent(nil, DetectionTypeEmail, Status("???"), 10)
	assert.Equal(t, 1, got.SuspiciousCount)
	assert.Equal(t, 1, got.EmailScans)
}

func TestApplyEvent_RunningMeanMatchesNaiveMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	statuses := []Status{StatusSafe, StatusSuspicious, StatusPhishing}
	types := []DetectionType{DetectionTypeEmail, DetectionTypeURL}

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(500)

		var summary *DailySummary
		sum := 0
		for i := 0; i < n; i++ {
			c := rng.Intn(101)
			sum += c
			next := ApplyEvent(summary, types[rng.Intn(2)], statuses[rng.Intn(3)], c)
			summary = &next
		}

		want := float64(sum) / float64(n)
		assert.Equal(t, n, summary.TotalScans)
		assert.InDelta(t, want, summary.AvgConfidence, 0.01)
		assert.InDelta(t, Round2(want), Round2(summary.AvgConfidence), 0.01)
		assert.Equal(t, summary.TotalScans, summary.SafeCount+summary.SuspiciousCount+summary.PhishingCount)
		assert.Equal(t, summary.TotalScans, summary.EmailScans+summary.URLScans)
	}
}
