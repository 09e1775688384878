// ABOUTME: Load/save helpers for the terminal client's on-disk device credentials
// ABOUTME: Credentials are written 0600 and refreshed in place after a token exchange

package credfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrNotPaired means no credential file exists yet.
var ErrNotPaired = errors.New("device not paired")

// Credentials are the persisted result of pairing a device.
type Credentials struct {
	AuthToken string    `json:"authToken"`
	UserID    string    `json:"userId"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpiresWithin reports whether the token expires within d (or already has).
func (c *Credentials) ExpiresWithin(d time.Duration) bool {
	return time.Until(c.ExpiresAt) < d
}

// Load reads credentials from path. Returns ErrNotPaired when the file does
// not exist.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotPaired
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.AuthToken == "" {
		return nil, fmt.Errorf("credentials file %s has no auth token", path)
	}
	return &creds, nil
}

// Save writes credentials to path with 0600 permissions, creating parent
// directories as needed. The write goes through a temp file and rename so a
// crash never leaves a truncated credential file.
func Save(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing credentials: %w", err)
	}
	return nil
}

// Remove deletes the credential file. Missing files are not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
