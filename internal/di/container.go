package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishguard/internal/adapters/filter"
	"github.com/mikey/phishguard/internal/adapters/httpapi"
	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"github.com/mikey/phishguard/internal/factory"
	"github.com/mikey/phishguard/internal/logging"
	"github.com/mikey/phishguard/internal/metrics"
	"github.com/mikey/phishguard/internal/utils"
	"github.com/mikey/phishguard/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.NewDetectionMetrics); err != nil {
		return nil, err
	}

	// Register detection store
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) core.DetectionStore {
		return f.CreateStoreOrMemory()
	}); err != nil {
		return nil, err
	}

	// Register detection service
	if err := container.Provide(func(
		provider core.JudgmentProvider,
		store core.DetectionStore,
		textProcessor *utils.TextProcessor,
		trusted *whitelist.Checker,
		recorder *metrics.DetectionMetrics,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.DetectionService {
		return core.NewDetectionService(provider, store, textProcessor, trusted, recorder, logger, serviceConfig(cfg))
	}); err != nil {
		return nil, err
	}

	// Register HTTP API
	if err := container.Provide(func(
		cfg *config.Config,
		service *core.DetectionService,
		store core.DetectionStore,
		recorder *metrics.DetectionMetrics,
		logger *zap.Logger,
	) *httpapi.Server {
		return httpapi.NewServer(cfg.GetServer(), service, store, recorder.Handler(), logger)
	}); err != nil {
		return nil, err
	}

	// Register SMTP intake, nil when disabled
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) *filter.SMTPFilter {
		return f.CreateSMTPFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers the pieces shared by the server and the CLI. It
// expects *config.Config and *zap.Logger to be provided already.
func provideCommon(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register judgment provider
	if err := container.Provide(func(f *factory.LLMFactory) core.JudgmentProvider {
		return f.CreateProviderOrFallback(context.Background())
	}); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register trusted domains
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		return whitelist.NewChecker(cfg.GetDetection().TrustedDomains, logger)
	}); err != nil {
		return err
	}

	return nil
}

func serviceConfig(cfg *config.Config) core.ServiceConfig {
	detection := cfg.GetDetection()
	return core.ServiceConfig{
		ProviderTimeout: detection.ProviderTimeout,
		StoreTimeout:    detection.StoreTimeout,
		MaxBodySize:     cfg.GetMaxBodySize(),
		CacheEnabled:    detection.CacheEnabled,
		CacheTTL:        detection.CacheTTL,
	}
}
