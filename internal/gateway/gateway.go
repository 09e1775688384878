// ABOUTME: Core ingest pipeline: detect, normalize, dedupe, resolve, audit, route
// ABOUTME: Unlinked senders are rejected and audited; duplicates are dropped silently

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courierhq/courier-gateway/internal/dedupe"
	"github.com/courierhq/courier-gateway/internal/identity"
	"github.com/courierhq/courier-gateway/internal/message"
	"github.com/courierhq/courier-gateway/internal/normalize"
	"github.com/courierhq/courier-gateway/internal/store"
)

// ErrDuplicateMessage means the message was already processed within the
// dedupe window. The first delivery was audited and routed; redeliveries are
// dropped without a second audit entry.
var ErrDuplicateMessage = errors.New("duplicate message")

// ErrSenderNotLinked means the sender's platform identity is not linked to
// any internal user. The rejection is recorded in the message log.
var ErrSenderNotLinked = errors.New("sender not linked")

const storeTimeout = 5 * time.Second

// Gateway normalizes raw platform payloads into canonical messages, resolves
// the sender to an internal user and dispatches to registered handlers. Every
// accepted message and every identity rejection lands in the message log.
type Gateway struct {
	store      store.Store
	normalizer *normalize.Normalizer
	resolver   *identity.Resolver
	router     *Router
	dedupe     *dedupe.Cache
	logger     *slog.Logger
}

// Options configures a Gateway.
type Options struct {
	Store      store.Store
	Logger     *slog.Logger
	DedupeTTL  time.Duration
	DedupeSize int
}

// New creates a Gateway over the given store.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.DedupeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	size := opts.DedupeSize
	if size <= 0 {
		size = 10000
	}
	return &Gateway{
		store:      opts.Store,
		normalizer: normalize.New(logger),
		resolver:   identity.NewResolver(opts.Store),
		router:     NewRouter(logger),
		dedupe:     dedupe.New(ttl, size),
		logger:     logger.With("component", "gateway"),
	}
}

// Router exposes the handler registry so callers can register consumers.
func (g *Gateway) Router() *Router {
	return g.router
}

// Ingest runs the full pipeline for one raw message. When raw.Platform is
// empty the platform is detected from the payload shape. The returned message
// has already been audited and routed. ErrSenderNotLinked and
// ErrDuplicateMessage are terminal rejections; any other error is transient
// and the caller may retry the same payload.
func (g *Gateway) Ingest(ctx context.Context, raw normalize.RawMessage) (*message.IncomingMessage, error) {
	if raw.Platform == "" {
		det := normalize.Detect(raw.Payload)
		raw.Platform = det.Platform
		g.logger.Debug("platform detected",
			"platform", det.Platform,
			"confidence", det.Confidence,
		)
	}

	msg, err := g.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing message: %w", err)
	}

	// Duplicate suppression keys on (platform, sender, message ID). Platform
	// message IDs like the Bot-API message_id are per-conversation counters,
	// so two senders routinely share one; only the full triple identifies a
	// redelivery.
	dedupeKey := string(msg.Platform) + ":" + msg.PlatformUserID + ":" + msg.ID
	if g.dedupe.Seen(dedupeKey) {
		g.logger.Debug("duplicate message dropped", "message_id", msg.ID, "platform", msg.Platform)
		return nil, ErrDuplicateMessage
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	userID, err := g.resolver.Resolve(sctx, msg.Platform, msg.PlatformUserID)
	if errors.Is(err, identity.ErrNotLinked) {
		g.logger.Warn("rejecting message from unlinked sender",
			"platform", msg.Platform,
			"platform_user_id", msg.PlatformUserID,
		)
		if auditErr := g.audit(sctx, msg, "", false, "sender not linked"); auditErr != nil {
			g.logger.Error("rejection audit failed", "message_id", msg.ID, "error", auditErr)
		}
		return nil, ErrSenderNotLinked
	}
	if err != nil {
		// Transient store failure. Not a rejection: no audit entry, and the
		// dedupe mark is released so the caller can retry the same payload.
		g.dedupe.Forget(dedupeKey)
		return nil, fmt.Errorf("resolving sender: %w", err)
	}
	msg.InternalUserID = userID

	if err := g.audit(sctx, msg, userID, true, ""); err != nil {
		g.dedupe.Forget(dedupeKey)
		return nil, fmt.Errorf("recording message: %w", err)
	}

	g.router.Route(ctx, msg)

	g.logger.Info("message ingested",
		"message_id", msg.ID,
		"platform", msg.Platform,
		"user_id", userID,
	)
	return msg, nil
}

// audit appends one message log entry. Used for both accepted messages and
// identity rejections. The row ID is left for the store to generate: platform
// message IDs repeat across senders and redeliveries.
func (g *Gateway) audit(ctx context.Context, msg *message.IncomingMessage, userID string, success bool, reason string) error {
	entry := &store.MessageLogEntry{
		MessageID:      msg.ID,
		UserID:         userID,
		Platform:       msg.Platform,
		PlatformUserID: msg.PlatformUserID,
		Text:           msg.Content.Text,
		Attachments:    msg.Content.Attachments,
		ReplyToID:      msg.Metadata.ReplyToID,
		Raw:            msg.Metadata.Raw,
		Success:        success,
		Reason:         reason,
		Timestamp:      msg.Timestamp,
	}
	return g.store.AppendMessageLog(ctx, entry)
}

// Close releases gateway-owned resources. The store is owned by the caller.
func (g *Gateway) Close() {
	g.dedupe.Close()
}
