// ABOUTME: In-memory Store implementation for tests
// ABOUTME: Supports error injection to simulate transient store failures

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courierhq/courier-gateway/internal/message"
)

// MockStore is an in-memory implementation of Store for testing.
// All methods are safe for concurrent use. Setting FailWith makes every
// subsequent call return that error, simulating store unavailability.
type MockStore struct {
	mu sync.Mutex

	FailWith error

	users      map[string]*User
	accounts   map[string]*LinkedAccount // key: platform|platformUserID
	tokens     map[string]*PairingToken
	devices    map[string]*LinkedDevice // key: platform|deviceID
	logEntries []*MessageLogEntry
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]*User),
		accounts: make(map[string]*LinkedAccount),
		tokens:   make(map[string]*PairingToken),
		devices:  make(map[string]*LinkedDevice),
	}
}

func accountKey(platform message.Platform, platformUserID string) string {
	return string(platform) + "|" + platformUserID
}

func deviceKey(platform message.Platform, deviceID string) string {
	return string(platform) + "|" + deviceID
}

func (m *MockStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, u := range m.users {
		if u.Name == user.Name {
			return ErrDuplicateUser
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetUserByName(_ context.Context, name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	for _, u := range m.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) CountUsers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	return len(m.users), nil
}

func (m *MockStore) UpsertLinkedAccount(_ context.Context, acct *LinkedAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	cp := *acct
	m.accounts[accountKey(acct.Platform, acct.PlatformUserID)] = &cp
	return nil
}

func (m *MockStore) GetLinkedAccount(_ context.Context, platform message.Platform, platformUserID string) (*LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	acct, ok := m.accounts[accountKey(platform, platformUserID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *MockStore) ListLinkedAccounts(_ context.Context, userID string) ([]*LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	var accounts []*LinkedAccount
	for _, acct := range m.accounts {
		if acct.UserID == userID {
			cp := *acct
			accounts = append(accounts, &cp)
		}
	}
	return accounts, nil
}

func (m *MockStore) DeleteLinkedAccount(_ context.Context, platform message.Platform, platformUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	key := accountKey(platform, platformUserID)
	if _, ok := m.accounts[key]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, key)
	return nil
}

func (m *MockStore) UpsertPairingToken(_ context.Context, token *PairingToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	cp := *token
	m.tokens[token.Code] = &cp
	return nil
}

func (m *MockStore) GetPairingToken(_ context.Context, code string) (*PairingToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	token, ok := m.tokens[code]
	if !ok {
		return nil, ErrPairingTokenNotFound
	}
	cp := *token
	return &cp, nil
}

func (m *MockStore) ConsumePairingToken(_ context.Context, code string, device *LinkedDevice) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	token, ok := m.tokens[code]
	if !ok {
		return "", ErrPairingTokenNotFound
	}
	now := time.Now().UTC()
	if now.After(token.ExpiresAt) {
		return "", ErrPairingTokenExpired
	}
	delete(m.tokens, code)

	id := device.ID
	if id == "" {
		id = uuid.New().String()
	}
	m.devices[deviceKey(device.Platform, device.DeviceID)] = &LinkedDevice{
		ID:          id,
		UserID:      token.UserID,
		Platform:    device.Platform,
		DeviceID:    device.DeviceID,
		DisplayName: device.DisplayName,
		Status:      DeviceStatusActive,
		LinkedAt:    now,
		LastUsedAt:  now,
	}
	m.accounts[accountKey(device.Platform, device.DeviceID)] = &LinkedAccount{
		Platform:       device.Platform,
		PlatformUserID: device.DeviceID,
		UserID:         token.UserID,
		DisplayName:    device.DisplayName,
		LinkedAt:       now,
		UpdatedAt:      now,
	}
	return token.UserID, nil
}

func (m *MockStore) DeleteExpiredPairingTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	var count int64
	for code, token := range m.tokens {
		if !now.Before(token.ExpiresAt) {
			delete(m.tokens, code)
			count++
		}
	}
	return count, nil
}

func (m *MockStore) findDevice(userID, deviceID string) *LinkedDevice {
	for _, d := range m.devices {
		if d.UserID == userID && d.DeviceID == deviceID {
			return d
		}
	}
	return nil
}

func (m *MockStore) GetDevice(_ context.Context, userID, deviceID string) (*LinkedDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	d := m.findDevice(userID, deviceID)
	if d == nil {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockStore) ListDevices(_ context.Context, userID string) ([]*LinkedDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	var devices []*LinkedDevice
	for _, d := range m.devices {
		if d.UserID == userID {
			cp := *d
			devices = append(devices, &cp)
		}
	}
	return devices, nil
}

func (m *MockStore) TouchDevice(_ context.Context, userID, deviceID string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	d := m.findDevice(userID, deviceID)
	if d == nil {
		return ErrNotFound
	}
	d.LastUsedAt = usedAt
	return nil
}

func (m *MockStore) SetDeviceStatus(_ context.Context, userID, deviceID string, status DeviceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	d := m.findDevice(userID, deviceID)
	if d == nil {
		return ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *MockStore) DeleteDevice(_ context.Context, userID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	d := m.findDevice(userID, deviceID)
	if d == nil {
		return ErrNotFound
	}
	delete(m.devices, deviceKey(d.Platform, d.DeviceID))
	delete(m.accounts, accountKey(d.Platform, d.DeviceID))
	return nil
}

func (m *MockStore) AppendMessageLog(_ context.Context, entry *MessageLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	cp := *entry
	m.logEntries = append(m.logEntries, &cp)
	return nil
}

func (m *MockStore) ListMessageLog(_ context.Context, filter MessageLogFilter) ([]*MessageLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	limit := normalizeLogLimit(filter.Limit)
	var entries []*MessageLogEntry
	for i := len(m.logEntries) - 1; i >= 0 && len(entries) < limit; i-- {
		e := m.logEntries[i]
		if e.UserID != filter.UserID {
			continue
		}
		if filter.Platform != "" && e.Platform != filter.Platform {
			continue
		}
		if filter.Since != nil && e.Timestamp.Before(*filter.Since) {
			continue
		}
		cp := *e
		entries = append(entries, &cp)
	}
	return entries, nil
}

func (m *MockStore) PurgeMessageLog(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	var kept []*MessageLogEntry
	var count int64
	for _, e := range m.logEntries {
		if e.Timestamp.Before(olderThan) {
			count++
			continue
		}
		kept = append(kept, e)
	}
	m.logEntries = kept
	return count, nil
}

// MessageLogEntries returns a snapshot of all log entries, oldest first.
// Test helper; not part of the Store interface.
func (m *MockStore) MessageLogEntries() []*MessageLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]*MessageLogEntry, 0, len(m.logEntries))
	for _, e := range m.logEntries {
		cp := *e
		entries = append(entries, &cp)
	}
	return entries
}

func (m *MockStore) Close() error { return nil }

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)
