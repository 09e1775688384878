// ABOUTME: Context helpers for carrying the authenticated user through requests
// ABOUTME: Shared by session middleware and HTTP handlers

package auth

import (
	"context"
)

// contextKey is a private type to avoid collisions with other packages.
type contextKey struct{}

var userKey contextKey

// WithUser returns a context carrying the authenticated user ID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFromContext extracts the authenticated user ID from the context.
// Returns an empty string if no user is set.
func UserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userKey).(string)
	return userID
}
