// ABOUTME: Tests for the canonical message types
// ABOUTME: Pins platform validity and MIME-to-attachment-kind mapping

package message

import "testing"

func TestPlatformIsValid(t *testing.T) {
	for _, p := range ValidPlatforms {
		if !p.IsValid() {
			t.Errorf("%q should be valid", p)
		}
	}
	for _, p := range []Platform{"", "pager", PlatformWildcard} {
		if p.IsValid() {
			t.Errorf("%q should not be valid", p)
		}
	}
}

func TestKindFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want AttachmentKind
	}{
		{"image/jpeg", AttachmentImage},
		{"image/png", AttachmentImage},
		{"audio/ogg", AttachmentAudio},
		{"video/mp4", AttachmentVideo},
		{"application/pdf", AttachmentDocument},
		{"text/plain", AttachmentDocument},
		{"", AttachmentDocument},
	}

	for _, tt := range tests {
		if got := KindFromMime(tt.mime); got != tt.want {
			t.Errorf("KindFromMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
