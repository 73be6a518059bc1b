package factory

import (
	"github.com/mikey/phishguard/internal/adapters/gemini"
	"github.com/mikey/phishguard/internal/config"
	"go.uber.org/zap"
)

// GeminiFactory creates Gemini judgment providers
type GeminiFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger) *GeminiFactory {
	return &GeminiFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateProvider creates a Gemini provider
func (f *GeminiFactory) CreateProvider() (*gemini.GeminiClient, error) {
	geminiCfg := f.cfg.GetGemini()

	return gemini.NewGeminiClient(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.logger,
	)
}
