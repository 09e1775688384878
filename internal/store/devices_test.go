// ABOUTME: Tests for linked-device status, listing, touch and deletion
// ABOUTME: Unlinking must also drop the device's platform identity mapping

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierhq/courier-gateway/internal/message"
)

// linkTestDevice pairs a device through the real consume path.
func linkTestDevice(t *testing.T, s *SQLiteStore, userID, deviceID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	code := "CR-" + deviceID
	require.NoError(t, s.UpsertPairingToken(ctx, &PairingToken{
		Code: code, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}))
	_, err := s.ConsumePairingToken(ctx, code,
		&LinkedDevice{Platform: message.PlatformTerminal, DeviceID: deviceID})
	require.NoError(t, err)
}

func TestDevice_TouchUpdatesLastUsed(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	linkTestDevice(t, s, "user-1", "device-1")

	usedAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, s.TouchDevice(ctx, "user-1", "device-1", usedAt))

	got, err := s.GetDevice(ctx, "user-1", "device-1")
	require.NoError(t, err)
	assert.Equal(t, usedAt, got.LastUsedAt)
}

func TestDevice_TouchMissing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.TouchDevice(ctx, "user-1", "ghost", time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDevice_SetStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	linkTestDevice(t, s, "user-1", "device-1")

	require.NoError(t, s.SetDeviceStatus(ctx, "user-1", "device-1", DeviceStatusSuspended))

	got, err := s.GetDevice(ctx, "user-1", "device-1")
	require.NoError(t, err)
	assert.Equal(t, DeviceStatusSuspended, got.Status)
}

func TestDevice_List(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	linkTestDevice(t, s, "user-1", "device-1")
	linkTestDevice(t, s, "user-1", "device-2")

	devices, err := s.ListDevices(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	devices, err = s.ListDevices(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestDevice_DeleteRemovesIdentityMapping(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "alice")
	linkTestDevice(t, s, "user-1", "device-1")

	require.NoError(t, s.DeleteDevice(ctx, "user-1", "device-1"))

	_, err := s.GetDevice(ctx, "user-1", "device-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// The terminal identity no longer resolves
	_, err = s.GetLinkedAccount(ctx, message.PlatformTerminal, "device-1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteDevice(ctx, "user-1", "device-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
