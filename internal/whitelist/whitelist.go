package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker tells whether a sender belongs to a trusted domain
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new trusted-domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			normalized[domain] = struct{}{}
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized trusted domain checker", zap.Int("domains", len(normalized)))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsWhitelisted checks if the sender's domain is trusted. from may be a bare
// address or a display-name form such as "PayPal <service@paypal.com>".
func (c *Checker) IsWhitelisted(from string) bool {
	if c == nil || len(c.domains) == 0 {
		return false
	}

	domain := SenderDomain(from)
	if domain == "" {
		return false
	}

	if _, ok := c.domains[domain]; ok {
		if c.logger != nil {
			c.logger.Debug("Sender domain is trusted",
				zap.String("domain", domain),
				zap.String("sender", from))
		}
		return true
	}

	return false
}

// SenderDomain extracts the lower-cased domain of an address, or "" if the
// address cannot be parsed
func SenderDomain(from string) string {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	} else if open, end := strings.LastIndexByte(address, '<'), strings.LastIndexByte(address, '>'); open >= 0 && end > open {
		address = address[open+1 : end]
	}

	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}
