// ABOUTME: Linked-account store methods mapping platform identities to users
// ABOUTME: (platform, platform_user_id) is unique; re-linking updates in place

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/courierhq/courier-gateway/internal/message"
)

// UpsertLinkedAccount creates or updates the mapping for a platform identity.
// Re-linking the same (platform, platform_user_id) updates the existing row
// rather than duplicating it.
func (s *SQLiteStore) UpsertLinkedAccount(ctx context.Context, acct *LinkedAccount) error {
	query := `
		INSERT INTO linked_accounts (platform, platform_user_id, user_id, display_name, linked_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform, platform_user_id) DO UPDATE SET
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		string(acct.Platform),
		acct.PlatformUserID,
		acct.UserID,
		acct.DisplayName,
		acct.LinkedAt.UTC().Format(time.RFC3339),
		acct.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting linked account: %w", err)
	}

	s.logger.Debug("upserted linked account",
		"platform", acct.Platform,
		"platform_user_id", acct.PlatformUserID,
		"user_id", acct.UserID,
	)
	return nil
}

// GetLinkedAccount retrieves the mapping for a platform identity.
// Returns ErrNotFound if no mapping exists.
func (s *SQLiteStore) GetLinkedAccount(ctx context.Context, platform message.Platform, platformUserID string) (*LinkedAccount, error) {
	query := `
		SELECT platform, platform_user_id, user_id, display_name, linked_at, updated_at
		FROM linked_accounts
		WHERE platform = ? AND platform_user_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, string(platform), platformUserID)
	return scanLinkedAccount(row)
}

// ListLinkedAccounts returns all platform identities mapped to a user.
func (s *SQLiteStore) ListLinkedAccounts(ctx context.Context, userID string) ([]*LinkedAccount, error) {
	query := `
		SELECT platform, platform_user_id, user_id, display_name, linked_at, updated_at
		FROM linked_accounts
		WHERE user_id = ?
		ORDER BY platform, platform_user_id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*LinkedAccount
	for rows.Next() {
		var acct LinkedAccount
		var platform, linkedAt, updatedAt string

		if err := rows.Scan(&platform, &acct.PlatformUserID, &acct.UserID, &acct.DisplayName, &linkedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning linked account row: %w", err)
		}

		acct.Platform = message.Platform(platform)
		acct.LinkedAt, err = time.Parse(time.RFC3339, linkedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing linked_at: %w", err)
		}
		acct.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		accounts = append(accounts, &acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating linked account rows: %w", err)
	}
	return accounts, nil
}

// DeleteLinkedAccount removes a platform identity mapping.
// Returns ErrNotFound if no mapping exists.
func (s *SQLiteStore) DeleteLinkedAccount(ctx context.Context, platform message.Platform, platformUserID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM linked_accounts WHERE platform = ? AND platform_user_id = ?`,
		string(platform), platformUserID)
	if err != nil {
		return fmt.Errorf("deleting linked account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted linked account", "platform", platform, "platform_user_id", platformUserID)
	return nil
}

func scanLinkedAccount(row *sql.Row) (*LinkedAccount, error) {
	var acct LinkedAccount
	var platform, linkedAt, updatedAt string

	err := row.Scan(&platform, &acct.PlatformUserID, &acct.UserID, &acct.DisplayName, &linkedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning linked account: %w", err)
	}

	acct.Platform = message.Platform(platform)
	acct.LinkedAt, err = time.Parse(time.RFC3339, linkedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing linked_at: %w", err)
	}
	acct.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &acct, nil
}
