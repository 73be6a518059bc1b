package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/phishguard/internal/utils"
	"github.com/mikey/phishguard/internal/whitelist"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Fallback messages for the two ways a provider reply can be unusable
const (
	FallbackReasonUnparsable = "Could not parse AI response"
	FallbackReasonError      = "Analysis failed due to system error"
)

const (
	defaultProviderTimeout = 30 * time.Second
	defaultStoreTimeout    = 10 * time.Second
)

// ServiceConfig holds the tunables of DetectionService
type ServiceConfig struct {
	ProviderTimeout time.Duration
	StoreTimeout    time.Duration
	MaxBodySize     int
	CacheEnabled    bool
	CacheTTL        time.Duration
}

// DetectionService is the core service for phishing detection
type DetectionService struct {
	provider      JudgmentProvider
	store         DetectionStore
	textProcessor *utils.TextProcessor
	trusted       *whitelist.Checker
	metrics       MetricsRecorder
	logger        *zap.Logger
	cfg           ServiceConfig
	verdicts      *cache.Cache
}

// NewDetectionService creates a new detection service. store, trusted and
// recorder may be nil.
func NewDetectionService(
	provider JudgmentProvider,
	store DetectionStore,
	textProcessor *utils.TextProcessor,
	trusted *whitelist.Checker,
	recorder MetricsRecorder,
	logger *zap.Logger,
	cfg ServiceConfig,
) *DetectionService {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}

	s := &DetectionService{
		provider:      provider,
		store:         store,
		textProcessor: textProcessor,
		trusted:       trusted,
		metrics:       recorder,
		logger:        logger,
		cfg:           cfg,
	}
	if cfg.CacheEnabled && cfg.CacheTTL > 0 {
		s.verdicts = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	return s
}

// TrustedSenderResult is returned for mail from a trusted domain
func TrustedSenderResult() DetectionResult {
	return DetectionResult{
		Status:     StatusSafe,
		Confidence: 100,
		Label:      "Trusted Sender",
		Message:    "Sender domain is on the trusted list",
		Indicators: []string{"Sender domain is trusted"},
	}
}

// DetectEmail judges an email, stores the event and returns the verdict.
// Provider and parsing failures yield the fallback verdict, not an error.
func (s *DetectionService) DetectEmail(ctx context.Context, email EmailRequest) (DetectionResult, error) {
	input, err := json.Marshal(email)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("failed to serialize email payload: %w", err)
	}

	logger := s.logger.With(
		zap.String("analysis_id", uuid.NewString()),
		zap.String("detection_type", string(DetectionTypeEmail)))

	var result DetectionResult
	if s.trusted.IsWhitelisted(email.From) {
		logger.Info("Skipping provider for trusted sender", zap.String("sender", email.From))
		result = TrustedSenderResult()
	} else {
		body := s.textProcessor.ProcessText(email.Body, s.cfg.MaxBodySize)
		result = s.judgeCached(ctx, logger, DetectionTypeEmail, string(input), EmailPrompt(email, body))
	}

	s.finish(ctx, logger, DetectionTypeEmail, string(input), result)
	return result, nil
}

// DetectURL judges a URL, stores the event and returns the verdict
func (s *DetectionService) DetectURL(ctx context.Context, req URLRequest) (DetectionResult, error) {
	logger := s.logger.With(
		zap.String("analysis_id", uuid.NewString()),
		zap.String("detection_type", string(DetectionTypeURL)))

	url := s.textProcessor.SanitizeUTF8(req.URL)
	result := s.judgeCached(ctx, logger, DetectionTypeURL, req.URL, URLPrompt(url))

	s.finish(ctx, logger, DetectionTypeURL, req.URL, result)
	return result, nil
}

// judgeCached consults the verdict cache before calling the provider
func (s *DetectionService) judgeCached(ctx context.Context, logger *zap.Logger, detectionType DetectionType, input, prompt string) DetectionResult {
	var key string
	if s.verdicts != nil {
		key = cacheKey(detectionType, input)
		if cached, found := s.verdicts.Get(key); found {
			logger.Debug("Verdict cache hit")
			result := cached.(DetectionResult)
			result.Indicators = append([]string{}, result.Indicators...)
			return result
		}
	}

	result, ok := s.judge(ctx, logger, detectionType, prompt)
	if ok && s.verdicts != nil {
		cached := result
		cached.Indicators = append([]string{}, result.Indicators...)
		s.verdicts.Set(key, cached, cache.DefaultExpiration)
	}
	return result
}

// judge calls the provider under a bounded timeout. The bool is false when
// the fallback verdict was substituted.
func (s *DetectionService) judge(ctx context.Context, logger *zap.Logger, detectionType DetectionType, prompt string) (DetectionResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.provider.Judge(ctx, prompt)
	s.metrics.ObserveProviderDuration(detectionType, time.Since(start))
	if err != nil {
		s.metrics.RecordProviderError(detectionType)
		logger.Warn("Judgment provider call failed",
			zap.String("provider", s.provider.Name()),
			zap.Error(err))
		return Fallback(FallbackReasonError), false
	}

	raw, err := ExtractPayload(text)
	if err != nil {
		s.metrics.RecordProviderError(detectionType)
		logger.Warn("Failed to parse provider response",
			zap.String("provider", s.provider.Name()),
			zap.Int("response_size", len(text)),
			zap.Error(err))
		return Fallback(FallbackReasonUnparsable), false
	}

	return Normalize(raw), true
}

// finish records the verdict and persists the event. Storage is best
// effort: failures are logged and never reach the caller.
func (s *DetectionService) finish(ctx context.Context, logger *zap.Logger, detectionType DetectionType, input string, result DetectionResult) {
	s.metrics.RecordDetection(detectionType, result.Status)
	logger.Info("Detection completed",
		zap.String("status", string(result.Status)),
		zap.Int("confidence", result.Confidence),
		zap.String("label", result.Label))

	if s.store == nil {
		return
	}

	// the request may already be finished by the time storage runs
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()

	event := &DetectionEvent{
		DetectionType: detectionType,
		InputData:     input,
		Result:        result,
	}
	if err := s.store.StoreEvent(storeCtx, event); err != nil {
		s.metrics.RecordStoreError("store_event")
		logger.Error("Failed to store detection event", zap.Error(err))
	}
}

func cacheKey(detectionType DetectionType, input string) string {
	sum := sha256.Sum256([]byte(string(detectionType) + "\x00" + input))
	return hex.EncodeToString(sum[:])
}
