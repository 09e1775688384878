// ABOUTME: Handler registry and dispatcher for canonical messages
// ABOUTME: Platform handlers run before wildcard handlers; failures are isolated per handler

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/courierhq/courier-gateway/internal/message"
)

// HandlerFunc is a registered consumer of canonical messages.
type HandlerFunc func(ctx context.Context, msg *message.IncomingMessage) error

// handler pairs a callback with the identity used in failure logs.
type handler struct {
	name string
	fn   HandlerFunc
}

// Router dispatches canonical messages to registered handlers. It is an
// explicit instance so multiple gateways (in tests, for example) never share
// registrations. Dispatch is synchronous per message; handlers for distinct
// messages may run concurrently.
type Router struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	handlers map[message.Platform][]handler
}

// NewRouter creates an empty Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger.With("component", "router"),
		handlers: make(map[message.Platform][]handler),
	}
}

// Register adds a handler for one platform. Handlers run in registration
// order. Use RegisterGlobal for handlers that consume every platform.
func (r *Router) Register(platform message.Platform, name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[platform] = append(r.handlers[platform], handler{name: name, fn: fn})
}

// RegisterGlobal adds a wildcard handler that runs for every platform, after
// the platform-specific chain.
func (r *Router) RegisterGlobal(name string, fn HandlerFunc) {
	r.Register(message.PlatformWildcard, name, fn)
}

// Route dispatches a message to all handlers for its platform, in
// registration order, then to all wildcard handlers. A handler error or
// panic is logged with the handler identity and message ID and never
// prevents the remaining handlers from running.
func (r *Router) Route(ctx context.Context, msg *message.IncomingMessage) {
	r.mu.RLock()
	chain := make([]handler, 0, len(r.handlers[msg.Platform])+len(r.handlers[message.PlatformWildcard]))
	chain = append(chain, r.handlers[msg.Platform]...)
	chain = append(chain, r.handlers[message.PlatformWildcard]...)
	r.mu.RUnlock()

	for _, h := range chain {
		if err := r.invoke(ctx, h, msg); err != nil {
			r.logger.Error("handler failed",
				"handler", h.name,
				"message_id", msg.ID,
				"platform", msg.Platform,
				"error", err,
			)
		}
	}
}

// invoke runs one handler, converting panics into errors so a misbehaving
// consumer cannot abort its siblings.
func (r *Router) invoke(ctx context.Context, h handler, msg *message.IncomingMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return h.fn(ctx, msg)
}
