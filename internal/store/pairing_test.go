// ABOUTME: Tests for pairing token storage and atomic consumption
// ABOUTME: Covers single-use semantics, expiry behavior and the link transaction

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierhq/courier-gateway/internal/message"
)

func TestPairingToken_UpsertAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC().Truncate(time.Second)
	token := &PairingToken{
		Code:      "CR-ABCD-EFGH",
		UserID:    "user-1",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
	require.NoError(t, s.UpsertPairingToken(ctx, token))

	got, err := s.GetPairingToken(ctx, "CR-ABCD-EFGH")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, token.ExpiresAt, got.ExpiresAt)
}

func TestPairingToken_UpsertReplacesOnCollision(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	mustCreateUser(t, s, "user-2", "bob")

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-ABCD-EFGH", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(time.Minute),
	}))
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-ABCD-EFGH", UserID: "user-2", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))

	got, err := s.GetPairingToken(ctx, "CR-ABCD-EFGH")
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.UserID)
}

func TestConsumePairingToken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC()
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-ABCD-EFGH", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))

	device := &LinkedDevice{
		Platform:    message.PlatformTerminal,
		DeviceID:    "device-1",
		DisplayName: "laptop",
	}
	userID, err := s.ConsumePairingToken(ctx, "CR-ABCD-EFGH", device)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Token is gone
	_, err = s.GetPairingToken(ctx, "CR-ABCD-EFGH")
	assert.ErrorIs(t, err, ErrPairingTokenNotFound)

	// Device row exists and is active
	got, err := s.GetDevice(ctx, "user-1", "device-1")
	require.NoError(t, err)
	assert.Equal(t, DeviceStatusActive, got.Status)
	assert.Equal(t, "laptop", got.DisplayName)
	assert.NotEmpty(t, got.ID)

	// The device's terminal identity resolves immediately
	acct, err := s.GetLinkedAccount(ctx, message.PlatformTerminal, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", acct.UserID)
}

func TestConsumePairingToken_SecondAttemptFails(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC()
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-ABCD-EFGH", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))

	_, err := s.ConsumePairingToken(ctx, "CR-ABCD-EFGH",
		&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: "device-1"})
	require.NoError(t, err)

	_, err = s.ConsumePairingToken(ctx, "CR-ABCD-EFGH",
		&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: "device-2"})
	assert.ErrorIs(t, err, ErrPairingTokenNotFound)
}

func TestConsumePairingToken_Concurrent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC()
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-ABCD-EFGH", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.ConsumePairingToken(ctx, "CR-ABCD-EFGH",
				&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: "device-1"})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent link attempt should win")
}

func TestConsumePairingToken_Expired(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC()
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-ABCD-EFGH", UserID: "user-1", CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-5 * time.Minute),
	}))

	_, err := s.ConsumePairingToken(ctx, "CR-ABCD-EFGH",
		&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: "device-1"})
	assert.ErrorIs(t, err, ErrPairingTokenExpired)

	// Expired rows stay for the maintenance sweep
	_, err = s.GetPairingToken(ctx, "CR-ABCD-EFGH")
	assert.NoError(t, err)

	// No device was linked
	_, err = s.GetDevice(ctx, "user-1", "device-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumePairingToken_Missing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.ConsumePairingToken(ctx, "CR-ZZZZ-ZZZZ",
		&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: "device-1"})
	assert.ErrorIs(t, err, ErrPairingTokenNotFound)
}

func TestConsumePairingToken_ReLinkSameDevice(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	mustCreateUser(t, s, "user-2", "bob")

	now := time.Now().UTC()
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-AAAA-AAAA", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))
	_, err := s.ConsumePairingToken(ctx, "CR-AAAA-AAAA",
		&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: "device-1", DisplayName: "old"})
	require.NoError(t, err)

	// Same physical device re-pairs against a different user
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-BBBB-BBBB", UserID: "user-2", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))
	_, err = s.ConsumePairingToken(ctx, "CR-BBBB-BBBB",
		&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: "device-1", DisplayName: "new"})
	require.NoError(t, err)

	got, err := s.GetDevice(ctx, "user-2", "device-1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.DisplayName)

	// Old ownership is gone
	_, err = s.GetDevice(ctx, "user-1", "device-1")
	assert.ErrorIs(t, err, ErrNotFound)

	acct, err := s.GetLinkedAccount(ctx, message.PlatformTerminal, "device-1")
	require.NoError(t, err)
	assert.Equal(t, "user-2", acct.UserID)
}

func TestDeleteExpiredPairingTokens(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")

	now := time.Now().UTC()
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-OLDD-OLDD", UserID: "user-1", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: "CR-NEWW-NEWW", UserID: "user-1", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))

	removed, err := s.DeleteExpiredPairingTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = s.GetPairingToken(ctx, "CR-OLDD-OLDD")
	assert.ErrorIs(t, err, ErrPairingTokenNotFound)
	_, err = s.GetPairingToken(ctx, "CR-NEWW-NEWW")
	assert.NoError(t, err)
}
