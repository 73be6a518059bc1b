package factory

import (
	"github.com/mikey/phishguard/internal/adapters/openai"
	"github.com/mikey/phishguard/internal/config"
	"go.uber.org/zap"
)

// OpenAIFactory creates OpenAI judgment providers
type OpenAIFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateProvider creates an OpenAI provider
func (f *OpenAIFactory) CreateProvider() (*openai.OpenAIClient, error) {
	openaiCfg := f.cfg.GetOpenAI()

	return openai.NewOpenAIClient(
		openaiCfg.APIKey,
		openaiCfg.BaseURL,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		f.logger,
	)
}
