package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrProviderUnavailable is returned by the placeholder provider installed
// when the configured one could not be built
var ErrProviderUnavailable = errors.New("judgment provider unavailable")

// UnavailableProvider fails every call so detections degrade to the
// fallback verdict instead of taking the process down
type UnavailableProvider struct {
	Reason error
}

// Judge always fails
func (p *UnavailableProvider) Judge(_ context.Context, _ string) (string, error) {
	if p.Reason == nil {
		return "", ErrProviderUnavailable
	}
	return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, p.Reason)
}

// Name returns a fixed identifier
func (p *UnavailableProvider) Name() string {
	return "unavailable"
}
