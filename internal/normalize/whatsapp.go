// ABOUTME: WhatsApp-style (chat-bot envelope) payload normalization
// ABOUTME: Maps conversation/extendedTextMessage and media sub-messages to canonical content

package normalize

import (
	"strconv"
	"time"

	"github.com/courierhq/courier-gateway/internal/message"
)

// mediaKinds maps the chat-bot envelope's media message fields to attachment
// kinds. Order matters: at most one media sub-message is expected per payload
// and the first present field wins.
var mediaKinds = []struct {
	field string
	kind  message.AttachmentKind
}{
	{"imageMessage", message.AttachmentImage},
	{"documentMessage", message.AttachmentDocument},
	{"audioMessage", message.AttachmentAudio},
	{"videoMessage", message.AttachmentVideo},
}

// normalizeWhatsApp handles chat-bot style envelopes. Text comes from
// message.conversation or extendedTextMessage.text; a media sub-message maps
// to a single attachment with its caption extracted as the message text; a
// quoted-message context populates ReplyToID.
func (n *Normalizer) normalizeWhatsApp(p map[string]any, msg *message.IncomingMessage) {
	key := getMap(p, "key")
	if id := getString(key, "id"); id != "" {
		msg.ID = id
	}
	if jid := getString(key, "remoteJid"); jid != "" {
		msg.PlatformUserID = jid
	}
	if ts, ok := getNumber(p, "messageTimestamp"); ok {
		msg.Timestamp = time.Unix(int64(ts), 0).UTC()
	} else if s := getString(p, "messageTimestamp"); s != "" {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			msg.Timestamp = time.Unix(sec, 0).UTC()
		}
	}

	body := getMap(p, "message")
	if body == nil {
		// Malformed envelope: keep raw, deliver empty text.
		return
	}

	if text := getString(body, "conversation"); text != "" {
		msg.Content.Text = text
	}

	if ext := getMap(body, "extendedTextMessage"); ext != nil {
		if text := getString(ext, "text"); text != "" {
			msg.Content.Text = text
		}
		msg.Metadata.ReplyToID = quotedStanzaID(ext)
	}

	for _, mk := range mediaKinds {
		media := getMap(body, mk.field)
		if media == nil {
			continue
		}
		locator := getString(media, "url")
		if locator == "" {
			locator = getString(media, "directPath")
		}
		msg.Content.Attachments = append(msg.Content.Attachments, message.Attachment{
			Kind:     mk.kind,
			Locator:  locator,
			MimeType: getString(media, "mimetype"),
		})
		if caption := getString(media, "caption"); caption != "" && msg.Content.Text == "" {
			msg.Content.Text = caption
		}
		if msg.Metadata.ReplyToID == "" {
			msg.Metadata.ReplyToID = quotedStanzaID(media)
		}
		break
	}
}

// quotedStanzaID extracts the replied-to message ID from a contextInfo block.
func quotedStanzaID(sub map[string]any) string {
	ctx := getMap(sub, "contextInfo")
	if ctx == nil {
		return ""
	}
	if id := getString(ctx, "stanzaId"); id != "" {
		return id
	}
	// Some payloads nest the quoted message without a stanza ID.
	if quoted := getMap(ctx, "quotedMessage"); quoted != nil {
		return getString(quoted, "id")
	}
	return ""
}
