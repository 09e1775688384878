// ABOUTME: Tests for linked-account mappings between platform identities and users
// ABOUTME: Covers upsert-on-relink, listing and deletion

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierhq/courier-gateway/internal/message"
)

func TestLinkedAccount_UpsertAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC().Truncate(time.Second)
	acct := &LinkedAccount{
		Platform:       message.PlatformWhatsApp,
		PlatformUserID: "15551234567@s.whatsapp.net",
		UserID:         "user-1",
		DisplayName:    "Alice",
		LinkedAt:       now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.UpsertLinkedAccount(ctx, acct))

	got, err := s.GetLinkedAccount(ctx, message.PlatformWhatsApp, "15551234567@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, now, got.LinkedAt)
}

func TestLinkedAccount_ReLinkUpdatesInPlace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	mustCreateUser(t, s, "user-2", "bob")

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpsertLinkedAccount(ctx, &LinkedAccount{
		Platform: message.PlatformTelegram, PlatformUserID: "12345",
		UserID: "user-1", LinkedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.UpsertLinkedAccount(ctx, &LinkedAccount{
		Platform: message.PlatformTelegram, PlatformUserID: "12345",
		UserID: "user-2", LinkedAt: now, UpdatedAt: now.Add(time.Minute),
	}))

	got, err := s.GetLinkedAccount(ctx, message.PlatformTelegram, "12345")
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.UserID)

	accounts, err := s.ListLinkedAccounts(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLinkedAccount_SameIDDifferentPlatforms(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	mustCreateUser(t, s, "user-2", "bob")

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpsertLinkedAccount(ctx, &LinkedAccount{
		Platform: message.PlatformTelegram, PlatformUserID: "shared-id",
		UserID: "user-1", LinkedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.UpsertLinkedAccount(ctx, &LinkedAccount{
		Platform: message.PlatformMail, PlatformUserID: "shared-id",
		UserID: "user-2", LinkedAt: now, UpdatedAt: now,
	}))

	tg, err := s.GetLinkedAccount(ctx, message.PlatformTelegram, "shared-id")
	require.NoError(t, err)
	assert.Equal(t, "user-1", tg.UserID)

	mail, err := s.GetLinkedAccount(ctx, message.PlatformMail, "shared-id")
	require.NoError(t, err)
	assert.Equal(t, "user-2", mail.UserID)
}

func TestLinkedAccount_List(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC().Truncate(time.Second)
	for _, a := range []struct {
		platform message.Platform
		id       string
	}{
		{message.PlatformWhatsApp, "wa-1"},
		{message.PlatformTelegram, "tg-1"},
		{message.PlatformMail, "alice@example.com"},
	} {
		require.NoError(t, s.UpsertLinkedAccount(ctx, &LinkedAccount{
			Platform: a.platform, PlatformUserID: a.id,
			UserID: "user-1", LinkedAt: now, UpdatedAt: now,
		}))
	}

	accounts, err := s.ListLinkedAccounts(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}

func TestLinkedAccount_Delete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC()
	require.NoError(t, s.UpsertLinkedAccount(ctx, &LinkedAccount{
		Platform: message.PlatformMail, PlatformUserID: "alice@example.com",
		UserID: "user-1", LinkedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, s.DeleteLinkedAccount(ctx, message.PlatformMail, "alice@example.com"))

	_, err := s.GetLinkedAccount(ctx, message.PlatformMail, "alice@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteLinkedAccount(ctx, message.PlatformMail, "alice@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
