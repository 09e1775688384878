// ABOUTME: Linked-device store methods for status, listing and revocation
// ABOUTME: Device status is the enforcement point that makes unlink/suspend effective

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/courierhq/courier-gateway/internal/message"
)

// GetDevice retrieves a device by its owning user and device identifier.
// Returns ErrNotFound if the device is not linked.
func (s *SQLiteStore) GetDevice(ctx context.Context, userID, deviceID string) (*LinkedDevice, error) {
	query := `
		SELECT id, user_id, platform, device_id, display_name, status, linked_at, last_used_at
		FROM linked_devices
		WHERE user_id = ? AND device_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, userID, deviceID)
	return scanDevice(row.Scan)
}

// ListDevices returns all devices linked to a user, most recently linked first.
func (s *SQLiteStore) ListDevices(ctx context.Context, userID string) ([]*LinkedDevice, error) {
	query := `
		SELECT id, user_id, platform, device_id, display_name, status, linked_at, last_used_at
		FROM linked_devices
		WHERE user_id = ?
		ORDER BY linked_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []*LinkedDevice
	for rows.Next() {
		device, err := scanDevice(rows.Scan)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// TouchDevice updates a device's last_used_at timestamp.
// Returns ErrNotFound if the device is not linked.
func (s *SQLiteStore) TouchDevice(ctx context.Context, userID, deviceID string, usedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE linked_devices SET last_used_at = ? WHERE user_id = ? AND device_id = ?`,
		usedAt.UTC().Format(time.RFC3339), userID, deviceID)
	if err != nil {
		return fmt.Errorf("touching device: %w", err)
	}
	return requireRowAffected(result)
}

// SetDeviceStatus transitions a device to the given status.
// Returns ErrNotFound if the device is not linked.
func (s *SQLiteStore) SetDeviceStatus(ctx context.Context, userID, deviceID string, status DeviceStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE linked_devices SET status = ? WHERE user_id = ? AND device_id = ?`,
		string(status), userID, deviceID)
	if err != nil {
		return fmt.Errorf("setting device status: %w", err)
	}
	if err := requireRowAffected(result); err != nil {
		return err
	}

	s.logger.Info("device status changed", "user_id", userID, "device_id", deviceID, "status", status)
	return nil
}

// DeleteDevice unlinks a device and removes its platform identity mapping in
// one transaction. All subsequent token validations for the device fail even
// though previously issued token signatures remain nominally valid.
// Returns ErrNotFound if the device is not linked.
func (s *SQLiteStore) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var platform string
	err = tx.QueryRowContext(ctx,
		`SELECT platform FROM linked_devices WHERE user_id = ? AND device_id = ?`,
		userID, deviceID).Scan(&platform)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying device: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM linked_devices WHERE user_id = ? AND device_id = ?`,
		userID, deviceID); err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM linked_accounts WHERE platform = ? AND platform_user_id = ? AND user_id = ?`,
		platform, deviceID, userID); err != nil {
		return fmt.Errorf("deleting device account mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing unlink transaction: %w", err)
	}

	s.logger.Info("deleted device", "user_id", userID, "device_id", deviceID)
	return nil
}

// requireRowAffected converts a zero-row update into ErrNotFound.
func requireRowAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanDevice scans a device row from either a Row or Rows scan function.
func scanDevice(scan func(dest ...any) error) (*LinkedDevice, error) {
	var device LinkedDevice
	var platform, status, linkedAt, lastUsedAt string

	err := scan(
		&device.ID,
		&device.UserID,
		&platform,
		&device.DeviceID,
		&device.DisplayName,
		&status,
		&linkedAt,
		&lastUsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	device.Platform = message.Platform(platform)
	device.Status = DeviceStatus(status)
	device.LinkedAt, err = time.Parse(time.RFC3339, linkedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing linked_at: %w", err)
	}
	device.LastUsedAt, err = time.Parse(time.RFC3339, lastUsedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing last_used_at: %w", err)
	}
	return &device, nil
}
