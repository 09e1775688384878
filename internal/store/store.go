// ABOUTME: Store interface and data types for courier-gateway persistence
// ABOUTME: Defines users, linked accounts, pairing tokens, devices and the message log

package store

import (
	"context"
	"errors"
	"time"

	"github.com/courierhq/courier-gateway/internal/message"
)

// Store errors.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPairingTokenNotFound is returned when a pairing code does not exist,
	// including codes that have already been consumed.
	ErrPairingTokenNotFound = errors.New("pairing token not found")

	// ErrPairingTokenExpired is returned when a pairing code exists but its
	// expiry has passed.
	ErrPairingTokenExpired = errors.New("pairing token expired")

	// ErrDuplicateUser is returned when creating a user whose name is taken.
	ErrDuplicateUser = errors.New("user already exists")
)

// User is an internal account. Platform identities and devices always resolve
// to exactly one user.
type User struct {
	ID         string
	Name       string
	SecretHash string // bcrypt hash of the session secret
	CreatedAt  time.Time
}

// LinkedAccount maps a platform identity to an internal user.
// (Platform, PlatformUserID) is unique; re-linking updates the existing row.
type LinkedAccount struct {
	Platform       message.Platform
	PlatformUserID string
	UserID         string
	DisplayName    string
	LinkedAt       time.Time
	UpdatedAt      time.Time
}

// PairingToken is a short-lived, single-use code that bootstraps trust for a
// new device. It is deleted atomically when consumed.
type PairingToken struct {
	Code      string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DeviceStatus represents the standing of a linked device.
type DeviceStatus string

const (
	DeviceStatusActive    DeviceStatus = "active"
	DeviceStatusInactive  DeviceStatus = "inactive"
	DeviceStatusSuspended DeviceStatus = "suspended"
)

// LinkedDevice is the durable record that a physical device maps to a user
// and remains in good standing. Token validation is gated by Status.
type LinkedDevice struct {
	ID          string // row UUID
	UserID      string
	Platform    message.Platform
	DeviceID    string // client-chosen physical device identifier
	DisplayName string
	Status      DeviceStatus
	LinkedAt    time.Time
	LastUsedAt  time.Time
}

// MessageLogEntry is one row of the append-only message history / audit log.
// Rejected resolution attempts are recorded with Success=false and an empty
// UserID; they are never first-class messages. ID is a surrogate row UUID;
// MessageID is the platform-assigned message identifier, which is only unique
// per sender on some platforms and may repeat across rows.
type MessageLogEntry struct {
	ID             string
	MessageID      string
	UserID         string
	Platform       message.Platform
	PlatformUserID string
	Text           string
	Attachments    []message.Attachment
	ReplyToID      string
	Raw            map[string]any
	Success        bool
	Reason         string
	Timestamp      time.Time
}

// MessageLogFilter selects message log rows for a user, optionally narrowed
// to one platform and a time window.
type MessageLogFilter struct {
	UserID   string
	Platform message.Platform // empty for all platforms
	Since    *time.Time
	Limit    int // default 100, capped at 1000
}

// Store defines the persistence interface shared by the message gateway and
// the pairing service. Implementations must provide read-your-writes
// consistency: a just-linked device is immediately resolvable.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	CountUsers(ctx context.Context) (int, error)

	// Linked accounts
	UpsertLinkedAccount(ctx context.Context, acct *LinkedAccount) error
	GetLinkedAccount(ctx context.Context, platform message.Platform, platformUserID string) (*LinkedAccount, error)
	ListLinkedAccounts(ctx context.Context, userID string) ([]*LinkedAccount, error)
	DeleteLinkedAccount(ctx context.Context, platform message.Platform, platformUserID string) error

	// Pairing tokens
	UpsertPairingToken(ctx context.Context, token *PairingToken) error
	GetPairingToken(ctx context.Context, code string) (*PairingToken, error)
	ConsumePairingToken(ctx context.Context, code string, device *LinkedDevice) (userID string, err error)
	DeleteExpiredPairingTokens(ctx context.Context, now time.Time) (int64, error)

	// Linked devices
	GetDevice(ctx context.Context, userID, deviceID string) (*LinkedDevice, error)
	ListDevices(ctx context.Context, userID string) ([]*LinkedDevice, error)
	TouchDevice(ctx context.Context, userID, deviceID string, usedAt time.Time) error
	SetDeviceStatus(ctx context.Context, userID, deviceID string, status DeviceStatus) error
	DeleteDevice(ctx context.Context, userID, deviceID string) error

	// Message log
	AppendMessageLog(ctx context.Context, entry *MessageLogEntry) error
	ListMessageLog(ctx context.Context, filter MessageLogFilter) ([]*MessageLogEntry, error)
	PurgeMessageLog(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases any resources held by the store
	Close() error
}
