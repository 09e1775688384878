// ABOUTME: Mail (IMAP-like) payload normalization
// ABOUTME: Prefers HTML body over plain text; named MIME parts become attachments

package normalize

import (
	"time"

	"github.com/courierhq/courier-gateway/internal/message"
)

// normalizeMail handles already-parsed mail payloads. The HTML body is
// preferred over plain text; every MIME part with a filename becomes an
// attachment whose kind is driven by its MIME type; the In-Reply-To header
// populates ReplyToID.
func (n *Normalizer) normalizeMail(p map[string]any, msg *message.IncomingMessage) {
	if id := getString(p, "messageId"); id != "" {
		msg.ID = id
	}
	if from := getString(p, "from"); from != "" {
		msg.PlatformUserID = from
	}
	if date := getString(p, "date"); date != "" {
		for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
			if t, err := time.Parse(layout, date); err == nil {
				msg.Timestamp = t.UTC()
				break
			}
		}
	}

	msg.Content.Text = getString(p, "html")
	if msg.Content.Text == "" {
		msg.Content.Text = getString(p, "text")
	}

	headers := getMap(p, "headers")
	if replyTo := getString(headers, "In-Reply-To"); replyTo != "" {
		msg.Metadata.ReplyToID = replyTo
	}

	for _, part := range getSlice(p, "parts") {
		pm, ok := part.(map[string]any)
		if !ok {
			continue
		}
		filename := getString(pm, "filename")
		if filename == "" {
			// Body parts without a filename are not attachments.
			continue
		}
		mime := getString(pm, "mimeType")
		locator := getString(pm, "url")
		if locator == "" {
			locator = filename
		}
		msg.Content.Attachments = append(msg.Content.Attachments, message.Attachment{
			Kind:     message.KindFromMime(mime),
			Locator:  locator,
			MimeType: mime,
		})
	}
}
