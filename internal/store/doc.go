// Package store provides persistent storage for courier-gateway using
// SQLite.
//
// # Architecture
//
// A single Store interface covers users, linked accounts, pairing tokens,
// linked devices and the message log. SQLiteStore implements it over
// modernc.org/sqlite; MockStore is an in-memory implementation for tests
// with error injection (FailWith) to simulate store outages.
//
// # Data Models
//
//   - User: internal account every identity resolves to
//   - LinkedAccount: (platform, platform_user_id) → user mapping
//   - PairingToken: short-lived single-use device pairing code
//   - LinkedDevice: durable device record gating token validation
//   - MessageLogEntry: append-only message history / audit row
//
// # SQLite Configuration
//
// WAL mode and foreign keys are enabled on open:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 strings. The schema is created
// automatically on first open.
//
// # Consistency
//
// ConsumePairingToken runs in one transaction: the code row is deleted
// (rows-affected is the atomicity point), the device is upserted and the
// terminal identity mapping is written. A just-linked device is immediately
// resolvable.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrPairingTokenNotFound / ErrPairingTokenExpired: consumption failures
//   - ErrDuplicateUser: user name already taken
//
// All methods accept context.Context for cancellation support.
package store
