package filter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mikey/phishguard/internal/core"
	"github.com/mikey/phishguard/internal/ports"
	"go.uber.org/zap"
)

// Detector runs both kinds of detection for the command line
type Detector interface {
	EmailDetector
	DetectURL(ctx context.Context, req core.URLRequest) (core.DetectionResult, error)
}

// CliFilter implements a command-line interface for phishing detection
type CliFilter struct {
	detector Detector
	out      io.Writer
	logger   *zap.Logger
	verbose  bool
}

var _ ports.EmailFilter = (*CliFilter)(nil)

// NewCliFilter creates a new CLI filter that prints to out
func NewCliFilter(detector Detector, out io.Writer, logger *zap.Logger, verbose bool) *CliFilter {
	return &CliFilter{
		detector: detector,
		out:      out,
		logger:   logger,
		verbose:  verbose,
	}
}

// ProcessEmail analyzes an email and prints the verdict
func (f *CliFilter) ProcessEmail(ctx context.Context, email core.EmailRequest) (core.DetectionResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))

	if f.verbose {
		preview := []rune(email.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}

	return f.run(func() (core.DetectionResult, error) {
		return f.detector.DetectEmail(ctx, email)
	})
}

// ProcessURL analyzes a URL and prints the verdict
func (f *CliFilter) ProcessURL(ctx context.Context, req core.URLRequest) (core.DetectionResult, error) {
	f.logger.Debug("Processing URL", zap.String("url", req.URL))

	fmt.Fprintf(f.out, "\n=== URL Summary ===\n")
	fmt.Fprintf(f.out, "URL: %s\n", req.URL)

	return f.run(func() (core.DetectionResult, error) {
		return f.detector.DetectURL(ctx, req)
	})
}

func (f *CliFilter) run(detect func() (core.DetectionResult, error)) (core.DetectionResult, error) {
	fmt.Fprintf(f.out, "\n=== Analysis ===\n")
	fmt.Fprintf(f.out, "Analyzing with the judgment provider...\n")

	start := time.Now()
	result, err := detect()
	if err != nil {
		f.logger.Error("Detection failed", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return core.DetectionResult{}, err
	}

	f.printResult(result, time.Since(start))
	return result, nil
}

func (f *CliFilter) printResult(result core.DetectionResult, duration time.Duration) {
	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Status: %s\n", result.Status)
	fmt.Fprintf(f.out, "Confidence: %d%%\n", result.Confidence)
	fmt.Fprintf(f.out, "Label: %s\n", result.Label)
	fmt.Fprintf(f.out, "Message: %s\n", result.Message)
	if len(result.Indicators) > 0 {
		fmt.Fprintf(f.out, "Indicators:\n  - %s\n", strings.Join(result.Indicators, "\n  - "))
	}
	fmt.Fprintf(f.out, "Processing time: %v\n", duration.Round(time.Millisecond))
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
