// ABOUTME: Tests for heuristic platform detection of untagged payloads
// ABOUTME: Pins the predicate order so shape ambiguity resolves the same way forever

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courierhq/courier-gateway/internal/message"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		platform   message.Platform
		confidence float64
	}{
		{
			name:       "explicit tag",
			payload:    map[string]any{"platform": "telegram", "whatever": true},
			platform:   message.PlatformTelegram,
			confidence: ConfidenceExplicit,
		},
		{
			name:       "invalid explicit tag falls through",
			payload:    map[string]any{"platform": "fax"},
			platform:   message.PlatformApp,
			confidence: ConfidenceDefaultApp,
		},
		{
			name: "chat-bot conversation envelope",
			payload: map[string]any{
				"key":     map[string]any{"id": "WA-1"},
				"message": map[string]any{"conversation": "hi"},
			},
			platform:   message.PlatformWhatsApp,
			confidence: ConfidenceStructural,
		},
		{
			name: "chat-bot media envelope",
			payload: map[string]any{
				"message": map[string]any{"imageMessage": map[string]any{"url": "x"}},
			},
			platform:   message.PlatformWhatsApp,
			confidence: ConfidenceStructural,
		},
		{
			name:       "bot-api update_id",
			payload:    map[string]any{"update_id": float64(1), "message": map[string]any{"text": "hi"}},
			platform:   message.PlatformTelegram,
			confidence: ConfidenceStructural,
		},
		{
			name: "bot-api chat without update_id",
			payload: map[string]any{
				"message": map[string]any{"chat": map[string]any{"id": float64(5)}, "text": "hi"},
			},
			platform:   message.PlatformTelegram,
			confidence: ConfidenceStructural,
		},
		{
			name:       "mail from+subject",
			payload:    map[string]any{"from": "a@example.com", "subject": "hello"},
			platform:   message.PlatformMail,
			confidence: ConfidenceWeak,
		},
		{
			name:       "mail from+headers",
			payload:    map[string]any{"from": "a@example.com", "headers": map[string]any{}},
			platform:   message.PlatformMail,
			confidence: ConfidenceWeak,
		},
		{
			name:       "bare terminal command",
			payload:    map[string]any{"command": "ls -la"},
			platform:   message.PlatformTerminal,
			confidence: ConfidenceWeak,
		},
		{
			name:       "command with nested object is not terminal",
			payload:    map[string]any{"command": "x", "meta": map[string]any{}},
			platform:   message.PlatformApp,
			confidence: ConfidenceDefaultApp,
		},
		{
			name:       "app-native fallback",
			payload:    map[string]any{"text": "plain old message"},
			platform:   message.PlatformApp,
			confidence: ConfidenceDefaultApp,
		},
		{
			name:       "empty payload",
			payload:    map[string]any{},
			platform:   message.PlatformApp,
			confidence: ConfidenceDefaultApp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := Detect(tt.payload)
			assert.Equal(t, tt.platform, det.Platform)
			assert.Equal(t, tt.confidence, det.Confidence)
		})
	}
}

// An explicit tag wins even when the shape screams another platform; a
// chat-bot envelope wins over a bot-api shape when both match.
func TestDetect_Precedence(t *testing.T) {
	det := Detect(map[string]any{
		"platform": "mail",
		"message":  map[string]any{"conversation": "hi"},
	})
	assert.Equal(t, message.PlatformMail, det.Platform)
	assert.Equal(t, ConfidenceExplicit, det.Confidence)

	det = Detect(map[string]any{
		"update_id": float64(1),
		"message":   map[string]any{"conversation": "hi", "chat": map[string]any{}},
	})
	assert.Equal(t, message.PlatformWhatsApp, det.Platform)
}
