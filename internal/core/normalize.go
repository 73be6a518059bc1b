package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Defaults applied by Normalize when the provider omits or garbles a field
const (
	DefaultConfidence = 50
	DefaultLabel      = "Analysis Complete"
	DefaultMessage    = "Detection analysis completed"
	DefaultIndicator  = "Analysis indicators unavailable"

	FallbackLabel     = "Analysis Error"
	FallbackIndicator = "System error - manual review recommended"
)

// Normalize coerces a loosely typed provider verdict into a DetectionResult.
// It never fails: every field has a conservative default and an unknown
// status becomes SUSPICIOUS, never SAFE.
func Normalize(raw map[string]any) DetectionResult {
	result := DetectionResult{
		Status:     StatusSuspicious,
		Confidence: DefaultConfidence,
		Label:      DefaultLabel,
		Message:    DefaultMessage,
		Indicators: []string{DefaultIndicator},
	}

	if s, ok := raw["status"].(string); ok && Status(s).Valid() {
		result.Status = Status(s)
	}

	if c, ok := toConfidence(raw["confidence"]); ok {
		result.Confidence = c
	}

	if label, ok := raw["label"].(string); ok && label != "" {
		result.Label = label
	}

	if message, ok := raw["message"].(string); ok {
		result.Message = message
	}

	if indicators, ok := toStrings(raw["indicators"]); ok {
		result.Indicators = indicators
	}

	return result
}

// Fallback is the fixed conservative verdict used when the provider call or
// its response cannot be used
func Fallback(reason string) DetectionResult {
	return DetectionResult{
		Status:     StatusSuspicious,
		Confidence: DefaultConfidence,
		Label:      FallbackLabel,
		Message:    reason,
		Indicators: []string{FallbackIndicator},
	}
}

// toConfidence truncates a numeric value to an int clamped to [0,100]
func toConfidence(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) {
		return 0, false
	}
	switch {
	case f < 0:
		return 0, true
	case f > 100:
		return 100, true
	}
	return int(f), true
}

// toStrings accepts only a sequence whose every element is a string
func toStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
