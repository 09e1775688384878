// ABOUTME: Tests for context user helpers
// ABOUTME: Verifies round-trip and empty-context behavior

package auth

import (
	"context"
	"testing"
)

func TestUserContext_RoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), "user-1")
	if got := UserFromContext(ctx); got != "user-1" {
		t.Errorf("expected user-1, got %q", got)
	}
}

func TestUserContext_Empty(t *testing.T) {
	if got := UserFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user, got %q", got)
	}
}
