package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name    string
		text    string
		maxSize int
		want    string
	}{
		{"under limit", "hello", 10, "hello"},
		{"disabled", strings.Repeat("x", 20), 0, strings.Repeat("x", 20)},
		{"cut", "hello world", 5, "hello" + TruncationMarker},
		{"rune boundary", "héllo", 2, "h" + TruncationMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tp.TruncateText(tt.text, tt.maxSize))
		})
	}
}

func TestTruncateText_EarlyInvalidByteKeepsTail(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	text := "Hi\xe9 " + strings.Repeat("https://paypa1.example/login ", 500)

	got := tp.TruncateText(text, 8192)
	assert.Equal(t, text[:8192]+TruncationMarker, got)

	processed := tp.ProcessText(text, 8192)
	assert.True(t, strings.HasPrefix(processed, "Hi https://paypa1.example/login"))
	assert.Len(t, processed, 8191+len(TruncationMarker))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
	// decomposed e + combining acute becomes the precomposed form
	assert.Equal(t, "caf\u00e9", tp.SanitizeUTF8("cafe\u0301"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())
	assert.Equal(t, "ab"+TruncationMarker, tp.ProcessText("ab\xffcd", 3))
}
