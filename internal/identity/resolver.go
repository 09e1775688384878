// ABOUTME: Identity resolver mapping platform identities to internal users
// ABOUTME: A miss is a hard rejection; store unavailability is a transient error, not a miss

package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/courierhq/courier-gateway/internal/message"
	"github.com/courierhq/courier-gateway/internal/store"
)

// ErrNotLinked means the sender's platform identity has no mapping to an
// internal user. There is no fuzzy matching; unverified senders never reach
// downstream handlers.
var ErrNotLinked = errors.New("platform identity not linked")

// AccountStore provides the linked-account lookup the resolver needs.
type AccountStore interface {
	GetLinkedAccount(ctx context.Context, platform message.Platform, platformUserID string) (*store.LinkedAccount, error)
}

// Resolver resolves platform identities against the linked-account store.
type Resolver struct {
	accounts AccountStore
}

// NewResolver creates a Resolver over the given account store.
func NewResolver(accounts AccountStore) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve returns the internal user ID for a platform identity.
// Returns ErrNotLinked when no mapping exists. Any other error is a store
// failure and must be treated as transient by the caller.
func (r *Resolver) Resolve(ctx context.Context, platform message.Platform, platformUserID string) (string, error) {
	if platformUserID == "" {
		return "", ErrNotLinked
	}

	acct, err := r.accounts.GetLinkedAccount(ctx, platform, platformUserID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotLinked
	}
	if err != nil {
		return "", fmt.Errorf("looking up linked account: %w", err)
	}
	return acct.UserID, nil
}
