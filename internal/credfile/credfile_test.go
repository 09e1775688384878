// ABOUTME: Tests for credential file persistence
// ABOUTME: Covers round-trips, permissions, missing files and expiry checks

package credfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds() *Credentials {
	return &Credentials{
		AuthToken: "tok-abc",
		UserID:    "user-1",
		DeviceID:  "device-1",
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	creds := testCreds()

	require.NoError(t, Save(path, creds))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestSave_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, Save(path, testCreds()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSave_OverwritesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, Save(path, testCreds()))

	updated := testCreds()
	updated.AuthToken = "tok-refreshed"
	require.NoError(t, Save(path, updated))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-refreshed", loaded.AuthToken)

	// No temp file left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrNotPaired)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotPaired)
}

func TestLoad_EmptyToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"authToken":""}`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, Save(path, testCreds()))

	require.NoError(t, Remove(path))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNotPaired)

	// Removing again is fine
	assert.NoError(t, Remove(path))
}

func TestExpiresWithin(t *testing.T) {
	creds := &Credentials{ExpiresAt: time.Now().Add(24 * time.Hour)}
	assert.False(t, creds.ExpiresWithin(time.Hour))
	assert.True(t, creds.ExpiresWithin(48*time.Hour))

	expired := &Credentials{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, expired.ExpiresWithin(time.Hour))
}
