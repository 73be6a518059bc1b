package factory

import (
	"context"
	"fmt"

	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// LLMFactory creates the configured judgment provider
type LLMFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	bedrock *BedrockFactory
	gemini  *GeminiFactory
	openai  *OpenAIFactory
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:     cfg,
		logger:  logger,
		bedrock: NewBedrockFactory(cfg, logger),
		gemini:  NewGeminiFactory(cfg, logger),
		openai:  NewOpenAIFactory(cfg, logger),
	}
}

// CreateProvider builds the provider named by llm.provider
func (f *LLMFactory) CreateProvider(ctx context.Context) (core.JudgmentProvider, error) {
	provider := f.cfg.GetLLM().Provider

	var (
		p   core.JudgmentProvider
		err error
	)
	switch provider {
	case "bedrock":
		p, err = f.bedrock.CreateProvider(ctx)
	case "gemini":
		p, err = f.gemini.CreateProvider()
	case "openai":
		p, err = f.openai.CreateProvider()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProviderOrFallback never fails: when the provider cannot be built the
// service still starts and every detection returns the fallback verdict
func (f *LLMFactory) CreateProviderOrFallback(ctx context.Context) core.JudgmentProvider {
	provider, err := f.CreateProvider(ctx)
	if err != nil {
		f.logger.Error("Failed to create judgment provider, detections will fall back",
			zap.String("provider", f.cfg.GetLLM().Provider),
			zap.Error(err))
		return &core.UnavailableProvider{Reason: err}
	}

	f.logger.Info("Judgment provider ready", zap.String("provider", provider.Name()))
	return provider
}
