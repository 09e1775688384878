// ABOUTME: Heuristic platform detection for untagged raw payloads
// ABOUTME: Ordered structural fingerprints with confidence scores; first match wins

package normalize

import (
	"github.com/courierhq/courier-gateway/internal/message"
)

// Detection is the detector's best guess for an untagged payload.
type Detection struct {
	Platform   message.Platform
	Confidence float64
}

// Detection confidence levels. An explicit tag is certain; structural
// fingerprints are strong but not proof; the app-native fallback is a
// convention, not a conclusion.
const (
	ConfidenceExplicit   = 1.0
	ConfidenceStructural = 0.9
	ConfidenceWeak       = 0.8
	ConfidenceDefaultApp = 0.5
)

// Detect infers the originating platform from payload shape. The predicate
// order below is a designed convention and the single place shape ambiguity
// is resolved; it is tested explicitly and must not be reordered casually:
//
//  1. explicit "platform" field
//  2. chat-bot envelope (nested message.conversation / media sub-messages)
//  3. bot-API shape (update_id, or message.chat)
//  4. mail shape (from + subject or headers)
//  5. bare terminal command (single "command" string, no nested objects)
//  6. app-native fallback
func Detect(payload map[string]any) Detection {
	if p := message.Platform(getString(payload, "platform")); p.IsValid() {
		return Detection{Platform: p, Confidence: ConfidenceExplicit}
	}

	if isChatBotEnvelope(payload) {
		return Detection{Platform: message.PlatformWhatsApp, Confidence: ConfidenceStructural}
	}
	if isBotAPIShape(payload) {
		return Detection{Platform: message.PlatformTelegram, Confidence: ConfidenceStructural}
	}
	if isMailShape(payload) {
		return Detection{Platform: message.PlatformMail, Confidence: ConfidenceWeak}
	}
	if isTerminalShape(payload) {
		return Detection{Platform: message.PlatformTerminal, Confidence: ConfidenceWeak}
	}

	return Detection{Platform: message.PlatformApp, Confidence: ConfidenceDefaultApp}
}

// isChatBotEnvelope matches the WhatsApp-style nested message envelope.
func isChatBotEnvelope(p map[string]any) bool {
	body := getMap(p, "message")
	if body == nil {
		return false
	}
	if _, ok := body["conversation"]; ok {
		return true
	}
	for _, field := range []string{"extendedTextMessage", "imageMessage", "documentMessage", "audioMessage", "videoMessage"} {
		if _, ok := body[field]; ok {
			return true
		}
	}
	return false
}

// isBotAPIShape matches Telegram-style updates: an update_id, or a message
// object carrying a chat.
func isBotAPIShape(p map[string]any) bool {
	if _, ok := p["update_id"]; ok {
		return true
	}
	if m := getMap(p, "message"); m != nil {
		if _, ok := m["chat"]; ok {
			return true
		}
	}
	return false
}

// isMailShape matches parsed mail: a from address together with a subject or
// a headers object.
func isMailShape(p map[string]any) bool {
	if _, ok := p["from"]; !ok {
		return false
	}
	if _, ok := p["subject"]; ok {
		return true
	}
	_, ok := p["headers"]
	return ok
}

// isTerminalShape matches a single command string with no nested objects.
func isTerminalShape(p map[string]any) bool {
	if _, ok := p["command"].(string); !ok {
		return false
	}
	for _, v := range p {
		if _, nested := v.(map[string]any); nested {
			return false
		}
	}
	return true
}
