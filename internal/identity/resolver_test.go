// ABOUTME: Tests for the identity resolver
// ABOUTME: A miss is ErrNotLinked; a store failure surfaces as a distinct error

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierhq/courier-gateway/internal/message"
	"github.com/courierhq/courier-gateway/internal/store"
)

func TestResolve(t *testing.T) {
	mock := store.NewMockStore()
	now := time.Now().UTC()
	require.NoError(t, mock.UpsertLinkedAccount(context.Background(), &store.LinkedAccount{
		Platform:       message.PlatformTelegram,
		PlatformUserID: "777000",
		UserID:         "user-1",
		LinkedAt:       now,
		UpdatedAt:      now,
	}))

	r := NewResolver(mock)
	userID, err := r.Resolve(context.Background(), message.PlatformTelegram, "777000")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestResolve_NotLinked(t *testing.T) {
	r := NewResolver(store.NewMockStore())

	_, err := r.Resolve(context.Background(), message.PlatformTelegram, "stranger")
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestResolve_EmptySender(t *testing.T) {
	r := NewResolver(store.NewMockStore())

	_, err := r.Resolve(context.Background(), message.PlatformMail, "")
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestResolve_PlatformScoped(t *testing.T) {
	mock := store.NewMockStore()
	now := time.Now().UTC()
	require.NoError(t, mock.UpsertLinkedAccount(context.Background(), &store.LinkedAccount{
		Platform:       message.PlatformTelegram,
		PlatformUserID: "shared-id",
		UserID:         "user-1",
		LinkedAt:       now,
		UpdatedAt:      now,
	}))

	r := NewResolver(mock)

	// Same identifier on another platform is a different identity
	_, err := r.Resolve(context.Background(), message.PlatformWhatsApp, "shared-id")
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestResolve_StoreFailureIsNotAMiss(t *testing.T) {
	mock := store.NewMockStore()
	mock.FailWith = errors.New("db locked")

	r := NewResolver(mock)
	_, err := r.Resolve(context.Background(), message.PlatformTelegram, "777000")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotLinked), "transient failure must not look like an unlinked sender")
}
