package ports

import (
	"context"

	"github.com/mikey/phishguard/internal/core"
)

// EmailFilter defines the interface for mail intake adapters that run
// phishing detection on messages arriving outside the HTTP API
type EmailFilter interface {
	// ProcessEmail runs detection on a single message and returns the verdict
	ProcessEmail(ctx context.Context, email core.EmailRequest) (core.DetectionResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
