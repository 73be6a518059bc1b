package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/phishguard/internal/adapters/filter"
	"github.com/mikey/phishguard/internal/adapters/httpapi"
	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"github.com/mikey/phishguard/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	server *httpapi.Server,
	smtpFilter *filter.SMTPFilter,
	provider core.JudgmentProvider,
	store core.DetectionStore,
) error {
	defer logger.Sync()

	// The API still serves detections when the schema cannot be created;
	// storing and analytics then fail per request.
	initCtx, cancel := context.WithTimeout(context.Background(), cfg.GetDetection().StoreTimeout)
	if err := store.Init(initCtx); err != nil {
		logger.Error("Failed to initialize detection store", zap.Error(err))
	}
	cancel()

	if smtpFilter != nil {
		if err := smtpFilter.Start(); err != nil {
			return fmt.Errorf("failed to start SMTP filter: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
			runErr = err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetServer().ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	if smtpFilter != nil {
		if err := smtpFilter.Stop(); err != nil {
			logger.Error("Failed to stop SMTP filter", zap.Error(err))
		}
	}

	if closer, ok := provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close judgment provider", zap.Error(err))
		}
	}

	if err := store.Close(); err != nil {
		logger.Error("Failed to close detection store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return runErr
}
