// ABOUTME: Bot-API style (Telegram-like) payload normalization
// ABOUTME: Picks the largest photo variant and maps document/voice/video to attachments

package normalize

import (
	"strconv"
	"time"

	"github.com/courierhq/courier-gateway/internal/message"
)

// normalizeTelegram handles bot-API updates. Text comes from message.text or
// message.caption; photo arrays select the largest resolution variant;
// document/voice/video map to typed attachments; reply_to_message.message_id
// populates ReplyToID.
func (n *Normalizer) normalizeTelegram(p map[string]any, msg *message.IncomingMessage) {
	m := getMap(p, "message")
	if m == nil {
		// Some transports hand us the inner message directly.
		m = p
	}

	if id, ok := getNumber(m, "message_id"); ok {
		msg.ID = strconv.FormatInt(int64(id), 10)
	}
	if from := getMap(m, "from"); from != nil {
		if uid, ok := getNumber(from, "id"); ok {
			msg.PlatformUserID = strconv.FormatInt(int64(uid), 10)
		}
	}
	if date, ok := getNumber(m, "date"); ok {
		msg.Timestamp = time.Unix(int64(date), 0).UTC()
	}

	msg.Content.Text = getString(m, "text")
	if msg.Content.Text == "" {
		msg.Content.Text = getString(m, "caption")
	}

	if reply := getMap(m, "reply_to_message"); reply != nil {
		if id, ok := getNumber(reply, "message_id"); ok {
			msg.Metadata.ReplyToID = strconv.FormatInt(int64(id), 10)
		}
	}

	if att, ok := largestPhoto(getSlice(m, "photo")); ok {
		msg.Content.Attachments = append(msg.Content.Attachments, att)
		return
	}

	if doc := getMap(m, "document"); doc != nil {
		msg.Content.Attachments = append(msg.Content.Attachments, message.Attachment{
			Kind:     message.AttachmentDocument,
			Locator:  getString(doc, "file_id"),
			MimeType: getString(doc, "mime_type"),
		})
		return
	}
	if voice := getMap(m, "voice"); voice != nil {
		msg.Content.Attachments = append(msg.Content.Attachments, message.Attachment{
			Kind:     message.AttachmentAudio,
			Locator:  getString(voice, "file_id"),
			MimeType: getString(voice, "mime_type"),
		})
		return
	}
	if video := getMap(m, "video"); video != nil {
		msg.Content.Attachments = append(msg.Content.Attachments, message.Attachment{
			Kind:     message.AttachmentVideo,
			Locator:  getString(video, "file_id"),
			MimeType: getString(video, "mime_type"),
		})
	}
}

// largestPhoto selects the highest-resolution entry from a bot-API photo
// array. Resolution is width*height; file_size breaks ties because some
// variants omit dimensions.
func largestPhoto(photos []any) (message.Attachment, bool) {
	var best map[string]any
	var bestArea, bestSize float64

	for _, entry := range photos {
		ph, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		w, _ := getNumber(ph, "width")
		h, _ := getNumber(ph, "height")
		size, _ := getNumber(ph, "file_size")
		area := w * h

		if best == nil || area > bestArea || (area == bestArea && size > bestSize) {
			best = ph
			bestArea = area
			bestSize = size
		}
	}

	if best == nil {
		return message.Attachment{}, false
	}
	return message.Attachment{
		Kind:     message.AttachmentImage,
		Locator:  getString(best, "file_id"),
		MimeType: "image/jpeg",
	}, true
}
