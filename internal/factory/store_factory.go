package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/phishguard/internal/adapters/store"
	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates detection stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates the detection store named by store.type
func (f *StoreFactory) CreateStore() (core.DetectionStore, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryStore(f.logger), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storeCfg.SQLitePath, f.logger)
	case "mysql":
		m := storeCfg.MySQL
		return store.NewMySQLStore(store.NewMySQLConfig(m.Host, m.Port, m.User, m.Password, m.Database), f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// CreateStoreOrMemory falls back to the in-memory store when the configured
// one cannot be opened, so detections keep working without persistence
func (f *StoreFactory) CreateStoreOrMemory() core.DetectionStore {
	s, err := f.CreateStore()
	if err != nil {
		f.logger.Error("Failed to open detection store, using in-memory store",
			zap.String("type", f.cfg.GetStore().Type),
			zap.Error(err))
		return store.NewMemoryStore(f.logger)
	}
	return s
}
