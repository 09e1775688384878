// ABOUTME: Append-only message history and audit log store methods
// ABOUTME: Records every accepted message and every rejected resolution attempt

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courierhq/courier-gateway/internal/message"
)

// AppendMessageLog appends an entry to the message log.
// Generates ID and Timestamp if not set. The row ID is a surrogate: platform
// message IDs repeat (redeliveries, per-chat counters) and must never key
// this table.
func (s *SQLiteStore) AppendMessageLog(ctx context.Context, entry *MessageLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var attachmentsJSON any
	if len(entry.Attachments) > 0 {
		data, err := json.Marshal(entry.Attachments)
		if err != nil {
			return fmt.Errorf("marshaling attachments: %w", err)
		}
		attachmentsJSON = string(data)
	}

	var rawJSON any
	if entry.Raw != nil {
		data, err := json.Marshal(entry.Raw)
		if err != nil {
			return fmt.Errorf("marshaling raw payload: %w", err)
		}
		rawJSON = string(data)
	}

	query := `
		INSERT INTO message_log (id, message_id, user_id, platform, platform_user_id, text, attachments_json, reply_to_id, raw_json, success, reason, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.MessageID,
		nullString(entry.UserID),
		string(entry.Platform),
		entry.PlatformUserID,
		entry.Text,
		attachmentsJSON,
		nullString(entry.ReplyToID),
		rawJSON,
		entry.Success,
		nullString(entry.Reason),
		entry.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message log entry: %w", err)
	}

	s.logger.Debug("appended message log",
		"id", entry.ID,
		"platform", entry.Platform,
		"success", entry.Success,
	)
	return nil
}

// normalizeLogLimit applies default (100) and cap (1000) to list limits.
func normalizeLogLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// ListMessageLog returns log entries for a user, newest first. The filter's
// Platform narrows to one platform; Since bounds the window.
func (s *SQLiteStore) ListMessageLog(ctx context.Context, filter MessageLogFilter) ([]*MessageLogEntry, error) {
	limit := normalizeLogLimit(filter.Limit)

	var sinceStr *string
	if filter.Since != nil {
		v := filter.Since.UTC().Format(time.RFC3339)
		sinceStr = &v
	}
	var platformStr *string
	if filter.Platform != "" {
		v := string(filter.Platform)
		platformStr = &v
	}

	query := `
		SELECT id, message_id, user_id, platform, platform_user_id, text, attachments_json, reply_to_id, raw_json, success, reason, ts
		FROM message_log
		WHERE (user_id = ? OR (user_id IS NULL AND ? = ''))
		  AND (? IS NULL OR platform = ?)
		  AND (? IS NULL OR ts >= ?)
		ORDER BY ts DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.UserID, filter.UserID,
		platformStr, platformStr,
		sinceStr, sinceStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying message log: %w", err)
	}
	defer rows.Close()

	var entries []*MessageLogEntry
	for rows.Next() {
		entry, err := scanMessageLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message log rows: %w", err)
	}
	return entries, nil
}

// PurgeMessageLog deletes entries older than the given cutoff, returning the
// number of rows removed. Used by the retention maintenance loop.
func (s *SQLiteStore) PurgeMessageLog(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM message_log WHERE ts < ?`,
		olderThan.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("purging message log: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Info("purged message log", "count", rowsAffected, "older_than", olderThan)
	}
	return rowsAffected, nil
}

func scanMessageLogEntry(rows *sql.Rows) (*MessageLogEntry, error) {
	var entry MessageLogEntry
	var platform, ts string
	var userID, attachmentsJSON, replyToID, rawJSON, reason sql.NullString

	if err := rows.Scan(
		&entry.ID,
		&entry.MessageID,
		&userID,
		&platform,
		&entry.PlatformUserID,
		&entry.Text,
		&attachmentsJSON,
		&replyToID,
		&rawJSON,
		&entry.Success,
		&reason,
		&ts,
	); err != nil {
		return nil, fmt.Errorf("scanning message log row: %w", err)
	}

	entry.Platform = message.Platform(platform)
	entry.UserID = userID.String
	entry.ReplyToID = replyToID.String
	entry.Reason = reason.String

	var err error
	entry.Timestamp, err = time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, fmt.Errorf("parsing ts: %w", err)
	}

	if attachmentsJSON.Valid {
		if err := json.Unmarshal([]byte(attachmentsJSON.String), &entry.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshaling attachments: %w", err)
		}
	}
	if rawJSON.Valid {
		if err := json.Unmarshal([]byte(rawJSON.String), &entry.Raw); err != nil {
			return nil, fmt.Errorf("unmarshaling raw payload: %w", err)
		}
	}
	return &entry, nil
}
