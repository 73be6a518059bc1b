package factory

import (
	"github.com/mikey/phishguard/internal/adapters/filter"
	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// FilterFactory creates the SMTP mail intake
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.DetectionService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.DetectionService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateSMTPFilter returns the SMTP filter, or nil when smtp.enabled is off
func (f *FilterFactory) CreateSMTPFilter() *filter.SMTPFilter {
	smtpCfg := f.cfg.GetSMTP()
	if !smtpCfg.Enabled {
		return nil
	}
	return filter.NewSMTPFilter(f.service, smtpCfg, f.logger)
}
