// ABOUTME: Pairing token store methods including atomic consumption
// ABOUTME: A token is consumable exactly once; consumption and device upsert share one transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertPairingToken stores a pairing token keyed by code, replacing any
// existing token with the same code (collision upsert).
func (s *SQLiteStore) UpsertPairingToken(ctx context.Context, token *PairingToken) error {
	query := `
		INSERT INTO pairing_tokens (code, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			user_id = excluded.user_id,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		token.Code,
		token.UserID,
		token.CreatedAt.UTC().Format(time.RFC3339),
		token.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting pairing token: %w", err)
	}

	s.logger.Debug("upserted pairing token", "code", token.Code, "user_id", token.UserID)
	return nil
}

// GetPairingToken retrieves a pairing token by code.
// Returns ErrPairingTokenNotFound if the code doesn't exist.
func (s *SQLiteStore) GetPairingToken(ctx context.Context, code string) (*PairingToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, user_id, created_at, expires_at FROM pairing_tokens WHERE code = ?`, code)

	var token PairingToken
	var createdAt, expiresAt string

	err := row.Scan(&token.Code, &token.UserID, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrPairingTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning pairing token: %w", err)
	}

	token.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	token.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	return &token, nil
}

// ConsumePairingToken validates and consumes a pairing code in one
// transaction: it looks up the code, verifies expiry, upserts the linked
// device and its terminal-platform account mapping, and deletes the token.
// Two concurrent link attempts on the same code cannot both succeed: the
// DELETE is the commit point and only one transaction observes the row.
// Any failure after validation rolls back cleanly.
//
// The device argument carries Platform, DeviceID, DisplayName and optionally
// ID; UserID, Status and timestamps are filled from the token and clock.
// Returns the owning user ID on success.
func (s *SQLiteStore) ConsumePairingToken(ctx context.Context, code string, device *LinkedDevice) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	var expiresAtStr string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM pairing_tokens WHERE code = ?`, code,
	).Scan(&userID, &expiresAtStr)
	if err == sql.ErrNoRows {
		return "", ErrPairingTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying pairing token: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return "", fmt.Errorf("parsing expires_at: %w", err)
	}

	now := time.Now().UTC()
	if now.After(expiresAt) {
		// Dead regardless of in-flight requests; expiry is self-enforcing.
		// Leave the row for the maintenance sweep and report the cause.
		return "", ErrPairingTokenExpired
	}

	// Consume: only one transaction can delete the row.
	result, err := tx.ExecContext(ctx, `DELETE FROM pairing_tokens WHERE code = ?`, code)
	if err != nil {
		return "", fmt.Errorf("deleting pairing token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return "", ErrPairingTokenNotFound
	}

	// Upsert the device row; re-linking the same physical device updates the
	// existing row rather than duplicating it.
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	nowStr := now.Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO linked_devices (id, user_id, platform, device_id, display_name, status, linked_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, device_id) DO UPDATE SET
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			status = excluded.status,
			linked_at = excluded.linked_at,
			last_used_at = excluded.last_used_at
	`,
		device.ID,
		userID,
		string(device.Platform),
		device.DeviceID,
		device.DisplayName,
		string(DeviceStatusActive),
		nowStr,
		nowStr,
	)
	if err != nil {
		return "", fmt.Errorf("upserting linked device: %w", err)
	}

	// Make the device's platform identity resolvable by the gateway in the
	// same transaction, so a just-linked device can send immediately.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO linked_accounts (platform, platform_user_id, user_id, display_name, linked_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, platform_user_id) DO UPDATE SET
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`,
		string(device.Platform),
		device.DeviceID,
		userID,
		device.DisplayName,
		nowStr,
		nowStr,
	)
	if err != nil {
		return "", fmt.Errorf("upserting linked account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing link transaction: %w", err)
	}

	s.logger.Info("consumed pairing token",
		"code", code,
		"user_id", userID,
		"device_id", device.DeviceID,
	)
	return userID, nil
}

// DeleteExpiredPairingTokens removes tokens whose expiry has passed.
// Returns the number of rows removed.
func (s *SQLiteStore) DeleteExpiredPairingTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM pairing_tokens WHERE expires_at <= ?`,
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting expired pairing tokens: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired pairing tokens", "count", rowsAffected)
	}
	return rowsAffected, nil
}
