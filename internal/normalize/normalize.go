// ABOUTME: Normalizer converts platform-specific raw payloads into canonical messages
// ABOUTME: Raw shapes never leak past this package; malformed input degrades, not panics

package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courierhq/courier-gateway/internal/message"
)

// ErrUnknownPlatform is returned when a raw message carries a platform tag the
// normalizer has no mapping for.
var ErrUnknownPlatform = errors.New("unknown platform")

// RawMessage is the boundary type handed to the gateway by a transport.
// Platform is empty when the transport did not tag the payload; SenderID is
// the transport-level sender identifier, used when the payload itself does not
// carry one.
type RawMessage struct {
	Platform message.Platform
	SenderID string
	Payload  map[string]any
}

// Normalizer converts raw payloads into IncomingMessages. It holds no mutable
// state; normalizing the same payload twice yields equal content.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With("component", "normalize")}
}

// Normalize maps a tagged raw message onto the canonical shape. The platform
// tag must already be set (run Detect first for untagged input). Unrecognized
// per-platform shapes produce an empty-text message with the raw payload
// preserved in Metadata.Raw for forensic inspection.
func (n *Normalizer) Normalize(raw RawMessage) (*message.IncomingMessage, error) {
	msg := &message.IncomingMessage{
		ID:             uuid.New().String(),
		Platform:       raw.Platform,
		PlatformUserID: raw.SenderID,
		Timestamp:      time.Now().UTC(),
		Metadata:       message.Metadata{Raw: raw.Payload},
	}

	switch raw.Platform {
	case message.PlatformApp:
		n.normalizeApp(raw.Payload, msg)
	case message.PlatformWhatsApp:
		n.normalizeWhatsApp(raw.Payload, msg)
	case message.PlatformTelegram:
		n.normalizeTelegram(raw.Payload, msg)
	case message.PlatformMail:
		n.normalizeMail(raw.Payload, msg)
	case message.PlatformTerminal:
		n.normalizeTerminal(raw.Payload, msg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, raw.Platform)
	}

	if msg.Content.Text == "" && len(msg.Content.Attachments) == 0 {
		n.logger.Debug("payload normalized to empty content",
			"platform", raw.Platform,
			"message_id", msg.ID,
		)
	}
	return msg, nil
}

// normalizeApp handles app-native payloads, which already carry the canonical
// field names and only need type coercion.
func (n *Normalizer) normalizeApp(p map[string]any, msg *message.IncomingMessage) {
	if id := getString(p, "id"); id != "" {
		msg.ID = id
	}
	if uid := getString(p, "userId"); uid != "" {
		msg.PlatformUserID = uid
	}
	msg.Content.Text = getString(p, "text")
	msg.Metadata.ReplyToID = getString(p, "replyToId")

	if ts := getString(p, "timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			msg.Timestamp = t.UTC()
		}
	}

	for _, a := range getSlice(p, "attachments") {
		att, ok := a.(map[string]any)
		if !ok {
			continue
		}
		mime := getString(att, "mimeType")
		kind := message.AttachmentKind(getString(att, "kind"))
		if kind == "" {
			kind = message.KindFromMime(mime)
		}
		msg.Content.Attachments = append(msg.Content.Attachments, message.Attachment{
			Kind:     kind,
			Locator:  getString(att, "locator"),
			MimeType: mime,
		})
	}
}

// normalizeTerminal maps a single command line onto the message text.
// Terminal messages never carry attachments.
func (n *Normalizer) normalizeTerminal(p map[string]any, msg *message.IncomingMessage) {
	msg.Content.Text = getString(p, "command")
}

// getString fetches a string value by key, tolerating missing or mistyped
// entries.
func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// getMap fetches a nested object by key.
func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

// getSlice fetches an array value by key.
func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	s, _ := m[key].([]any)
	return s
}

// getNumber fetches a numeric value by key. JSON decoding yields float64 for
// all numbers; integers arriving from typed callers are handled too.
func getNumber(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
