package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/phishguard/internal/utils"
	"github.com/mikey/phishguard/internal/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	prompts []string
}

func (p *stubProvider) Judge(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.reply, p.err
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

type recordingStore struct {
	mu     sync.Mutex
	events []DetectionEvent
	err    error
}

func (s *recordingStore) Init(context.Context) error { return nil }

func (s *recordingStore) StoreEvent(ctx context.Context, event *DetectionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *recordingStore) GetDashboardAnalytics(context.Context) (*DashboardAnalytics, error) {
	return EmptyDashboard(), nil
}

func (s *recordingStore) GetRecentEvents(context.Context, int) ([]RecentEvent, error) {
	return nil, nil
}

func (s *recordingStore) Close() error { return nil }

type countingRecorder struct {
	mu             sync.Mutex
	detections     map[Status]int
	providerErrors int
	storeErrors    int
}

func (r *countingRecorder) RecordDetection(_ DetectionType, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detections == nil {
		r.detections = map[Status]int{}
	}
	r.detections[status]++
}

func (r *countingRecorder) RecordProviderError(DetectionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerErrors++
}

func (r *countingRecorder) ObserveProviderDuration(DetectionType, time.Duration) {}

func (r *countingRecorder) RecordStoreError(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeErrors++
}

const phishingReply = "Here is my analysis:\n```json\n" +
	`{"status":"PHISHING","confidence":92,"label":"Credential Harvesting","message":"Lookalike domain","indicators":["paypa1.com"]}` +
	"\n```"

func newService(provider JudgmentProvider, store DetectionStore, trusted []string, recorder MetricsRecorder, cfg ServiceConfig) *DetectionService {
	logger := zap.NewNop()
	return NewDetectionService(provider, store, utils.NewTextProcessor(logger), whitelist.NewChecker(trusted, logger), recorder, logger, cfg)
}

func TestDetectEmail_StoresNormalizedVerdict(t *testing.T) {
	provider := &stubProvider{reply: phishingReply}
	store := &recordingStore{}
	recorder := &countingRecorder{}
	svc := newService(provider, store, nil, recorder, ServiceConfig{})

	email := EmailRequest{From: "support@paypa1.com", Subject: "Verify now", Body: "Click the link"}
	result, err := svc.DetectEmail(context.Background(), email)
	require.NoError(t, err)

	want := DetectionResult{
		Status:     StatusPhishing,
		Confidence: 92,
		Label:      "Credential Harvesting",
		Message:    "Lookalike domain",
		Indicators: []string{"paypa1.com"},
	}
	assert.Equal(t, want, result)

	require.Len(t, store.events, 1)
	assert.Equal(t, DetectionTypeEmail, store.events[0].DetectionType)
	assert.JSONEq(t, `{"from":"support@paypa1.com","subject":"Verify now","body":"Click the link"}`, store.events[0].InputData)
	assert.Equal(t, want, store.events[0].Result)

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "From: support@paypa1.com\nSubject: Verify now\nBody: Click the link")
	assert.Equal(t, 1, recorder.detections[StatusPhishing])
}

func TestDetectEmail_ProviderErrorFallsBack(t *testing.T) {
	store := &recordingStore{}
	recorder := &countingRecorder{}
	svc := newService(&stubProvider{err: errors.New("quota exceeded")}, store, nil, recorder, ServiceConfig{})

	result, err := svc.DetectEmail(context.Background(), EmailRequest{})
	require.NoError(t, err)
	assert.Equal(t, Fallback(FallbackReasonError), result)
	assert.Equal(t, 1, recorder.providerErrors)

	require.Len(t, store.events, 1)
	assert.Equal(t, StatusSuspicious, store.events[0].Result.Status)
	assert.Equal(t, 50, store.events[0].Result.Confidence)
}

func TestDetectURL_UnparsableReplyFallsBack(t *testing.T) {
	store := &recordingStore{}
	svc := newService(&stubProvider{reply: "I cannot help with that."}, store, nil, nil, ServiceConfig{})

	result, err := svc.DetectURL(context.Background(), URLRequest{URL: "http://paypa1.com/login"})
	require.NoError(t, err)
	assert.Equal(t, Fallback(FallbackReasonUnparsable), result)

	require.Len(t, store.events, 1)
	assert.Equal(t, DetectionTypeURL, store.events[0].DetectionType)
	assert.Equal(t, "http://paypa1.com/login", store.events[0].InputData)
}

func TestDetectEmail_TrustedSenderSkipsProvider(t *testing.T) {
	provider := &stubProvider{reply: phishingReply}
	store := &recordingStore{}
	svc := newService(provider, store, []string{"paypal.com"}, nil, ServiceConfig{})

	result, err := svc.DetectEmail(context.Background(), EmailRequest{From: "PayPal <service@paypal.com>"})
	require.NoError(t, err)
	assert.Equal(t, TrustedSenderResult(), result)
	assert.Zero(t, provider.calls())
	assert.Len(t, store.events, 1)
}

func TestDetectEmail_TruncatesPromptBodyOnly(t *testing.T) {
	provider := &stubProvider{reply: phishingReply}
	store := &recordingStore{}
	svc := newService(provider, store, nil, nil, ServiceConfig{MaxBodySize: 10})

	body := strings.Repeat("a", 100)
	_, err := svc.DetectEmail(context.Background(), EmailRequest{Body: body})
	require.NoError(t, err)

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "Body: aaaaaaaaaa"+utils.TruncationMarker)
	assert.NotContains(t, provider.prompts[0], strings.Repeat("a", 11))
	assert.Contains(t, store.events[0].InputData, body)
}

func TestDetectEmail_StoreFailureIsNotReturned(t *testing.T) {
	recorder := &countingRecorder{}
	svc := newService(&stubProvider{reply: phishingReply}, &recordingStore{err: errors.New("disk full")}, nil, recorder, ServiceConfig{})

	result, err := svc.DetectEmail(context.Background(), EmailRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusPhishing, result.Status)
	assert.Equal(t, 1, recorder.storeErrors)
}

func TestDetect_StoresAfterRequestCancellation(t *testing.T) {
	store := &recordingStore{}
	svc := newService(&stubProvider{err: errors.New("canceled upstream")}, store, nil, nil, ServiceConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.DetectURL(ctx, URLRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Len(t, store.events, 1)
}

func TestDetect_ProviderTimeout(t *testing.T) {
	svc := newService(&stubProvider{block: true}, nil, nil, nil, ServiceConfig{ProviderTimeout: 20 * time.Millisecond})

	start := time.Now()
	result, err := svc.DetectURL(context.Background(), URLRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, Fallback(FallbackReasonError), result)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDetect_VerdictCache(t *testing.T) {
	provider := &stubProvider{reply: phishingReply}
	store := &recordingStore{}
	svc := newService(provider, store, nil, nil, ServiceConfig{CacheEnabled: true, CacheTTL: time.Minute})

	first, err := svc.DetectURL(context.Background(), URLRequest{URL: "http://paypa1.com"})
	require.NoError(t, err)
	first.Indicators[0] = "mutated"

	second, err := svc.DetectURL(context.Background(), URLRequest{URL: "http://paypa1.com"})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, []string{"paypa1.com"}, second.Indicators)
	assert.Len(t, store.events, 2)

	_, err = svc.DetectEmail(context.Background(), EmailRequest{Body: "http://paypa1.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls())
}

func TestDetect_FallbackIsNotCached(t *testing.T) {
	provider := &stubProvider{err: errors.New("unavailable")}
	svc := newService(provider, nil, nil, nil, ServiceConfig{CacheEnabled: true, CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := svc.DetectURL(context.Background(), URLRequest{URL: "https://example.com"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, provider.calls())
}

func TestPrompts(t *testing.T) {
	email := EmailPrompt(EmailRequest{From: "a@b.c", Subject: "Hi", Body: "ignored"}, "short")
	assert.Contains(t, email, "From: a@b.c\nSubject: Hi\nBody: short\n")
	assert.NotContains(t, email, "ignored")
	assert.Contains(t, email, `"status": "SAFE|SUSPICIOUS|PHISHING"`)

	url := URLPrompt("https://example.com")
	assert.Contains(t, url, "URL: https://example.com\n")
	assert.Contains(t, url, `"indicators": [`)
}
