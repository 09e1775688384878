// ABOUTME: Tests for the message router
// ABOUTME: Covers registration order, wildcard dispatch and per-handler fault isolation

package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courierhq/courier-gateway/internal/message"
)

func testMsg(platform message.Platform) *message.IncomingMessage {
	return &message.IncomingMessage{
		ID:             "msg-1",
		Platform:       platform,
		PlatformUserID: "sender",
		Content:        message.Content{Text: "hello"},
	}
}

func TestRoute_OrderAndWildcard(t *testing.T) {
	r := NewRouter(nil)
	var calls []string

	record := func(name string) HandlerFunc {
		return func(_ context.Context, _ *message.IncomingMessage) error {
			calls = append(calls, name)
			return nil
		}
	}

	r.Register(message.PlatformTelegram, "tg-first", record("tg-first"))
	r.Register(message.PlatformTelegram, "tg-second", record("tg-second"))
	r.Register(message.PlatformMail, "mail-only", record("mail-only"))
	r.RegisterGlobal("audit", record("audit"))

	r.Route(context.Background(), testMsg(message.PlatformTelegram))

	assert.Equal(t, []string{"tg-first", "tg-second", "audit"}, calls,
		"platform handlers run in registration order, wildcard last, other platforms skipped")
}

func TestRoute_NoHandlers(t *testing.T) {
	r := NewRouter(nil)
	// Nothing registered: routing is a no-op, not a failure
	r.Route(context.Background(), testMsg(message.PlatformApp))
}

func TestRoute_ErrorIsolation(t *testing.T) {
	r := NewRouter(nil)
	var calls []string

	r.Register(message.PlatformApp, "broken", func(_ context.Context, _ *message.IncomingMessage) error {
		calls = append(calls, "broken")
		return errors.New("downstream exploded")
	})
	r.Register(message.PlatformApp, "healthy", func(_ context.Context, _ *message.IncomingMessage) error {
		calls = append(calls, "healthy")
		return nil
	})

	r.Route(context.Background(), testMsg(message.PlatformApp))

	assert.Equal(t, []string{"broken", "healthy"}, calls, "a failing handler must not stop its siblings")
}

func TestRoute_PanicIsolation(t *testing.T) {
	r := NewRouter(nil)
	var calls []string

	r.Register(message.PlatformApp, "panicky", func(_ context.Context, _ *message.IncomingMessage) error {
		panic("boom")
	})
	r.RegisterGlobal("survivor", func(_ context.Context, _ *message.IncomingMessage) error {
		calls = append(calls, "survivor")
		return nil
	})

	r.Route(context.Background(), testMsg(message.PlatformApp))

	assert.Equal(t, []string{"survivor"}, calls, "a panicking handler must not stop its siblings")
}
