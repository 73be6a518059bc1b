package core

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoPayload is returned when the provider text contains no '{'
	ErrNoPayload = errors.New("no structured payload in provider response")
	// ErrInvalidPayload is returned when no brace-delimited candidate parses as an object
	ErrInvalidPayload = errors.New("provider response payload is not valid JSON")
)

// ExtractPayload finds the first well-formed JSON object embedded in free
// text, such as a model reply wrapped in prose or a ```json fence
func ExtractPayload(text string) (map[string]any, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, ErrNoPayload
	}

	for start >= 0 {
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		dec.UseNumber()

		var payload map[string]any
		if err := dec.Decode(&payload); err == nil && payload != nil {
			return payload, nil
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, ErrInvalidPayload
}
