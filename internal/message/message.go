// ABOUTME: Canonical message types shared by every gateway component
// ABOUTME: Defines Platform, Attachment and the immutable IncomingMessage

package message

import (
	"strings"
	"time"
)

// Platform identifies the channel a message originated from.
type Platform string

const (
	PlatformApp      Platform = "app"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformTelegram Platform = "telegram"
	PlatformMail     Platform = "mail"
	PlatformTerminal Platform = "terminal"

	// PlatformWildcard matches every platform in handler registrations.
	PlatformWildcard Platform = "*"
)

// ValidPlatforms lists every real (non-wildcard) platform.
var ValidPlatforms = []Platform{
	PlatformApp,
	PlatformWhatsApp,
	PlatformTelegram,
	PlatformMail,
	PlatformTerminal,
}

// IsValid reports whether p is a known concrete platform.
func (p Platform) IsValid() bool {
	for _, v := range ValidPlatforms {
		if p == v {
			return true
		}
	}
	return false
}

// AttachmentKind categorizes an attachment.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentVideo    AttachmentKind = "video"
)

// Attachment is a single media item carried by a message. Locator is either a
// URL or an opaque platform reference; the gateway never fetches it.
type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	Locator  string         `json:"locator"`
	MimeType string         `json:"mime_type,omitempty"`
}

// KindFromMime maps a MIME type to an attachment kind. Anything that is not
// image/audio/video is classified as a document.
func KindFromMime(mime string) AttachmentKind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mime, "audio/"):
		return AttachmentAudio
	case strings.HasPrefix(mime, "video/"):
		return AttachmentVideo
	default:
		return AttachmentDocument
	}
}

// Content is the normalized body of a message.
type Content struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Metadata carries per-message context that is not part of the content.
type Metadata struct {
	ReplyToID string         `json:"reply_to_id,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// IncomingMessage is the canonical representation every downstream consumer
// operates on. It is immutable once created; InternalUserID is always set on
// messages that reach a handler.
type IncomingMessage struct {
	ID             string    `json:"id"`
	InternalUserID string    `json:"internal_user_id"`
	Platform       Platform  `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	Content        Content   `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Metadata       Metadata  `json:"metadata"`
}
