// ABOUTME: Device pairing service: code generation, linking, token validation and refresh
// ABOUTME: Validation is two-phase: JWT signature/expiry first, then live device status

package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courierhq/courier-gateway/internal/auth"
	"github.com/courierhq/courier-gateway/internal/message"
	"github.com/courierhq/courier-gateway/internal/store"
)

// Pairing errors. Each validation failure has its own error so callers (and
// the HTTP layer) can report the precise cause.
var (
	// ErrCodeNotFound means the pairing code does not exist or was already
	// consumed. Single-use codes make these cases indistinguishable.
	ErrCodeNotFound = errors.New("pairing code not found")

	// ErrCodeExpired means the pairing code exists but is past its expiry.
	ErrCodeExpired = errors.New("pairing code expired")

	// ErrDeviceNotLinked means the token verified but the device record is
	// gone, typically after an unlink.
	ErrDeviceNotLinked = errors.New("device not linked")

	// ErrDeviceSuspended means the device record exists but was suspended.
	ErrDeviceSuspended = errors.New("device suspended")

	// ErrDeviceInactive means the device record exists but is not active.
	ErrDeviceInactive = errors.New("device inactive")
)

// Default lifetimes. Pairing codes are short-lived by design; device tokens
// last long enough that a daily-use terminal never re-pairs.
const (
	DefaultCodeTTL  = 5 * time.Minute
	DefaultTokenTTL = 90 * 24 * time.Hour
)

// Service implements device pairing and device token lifecycle on top of the
// store and token signer.
type Service struct {
	store    store.Store
	signer   *auth.Signer
	logger   *slog.Logger
	locks    *keyedMutex
	codeTTL  time.Duration
	tokenTTL time.Duration
}

// ServiceOptions configures a pairing Service.
type ServiceOptions struct {
	Store    store.Store
	Signer   *auth.Signer
	Logger   *slog.Logger
	CodeTTL  time.Duration // defaults to DefaultCodeTTL
	TokenTTL time.Duration // defaults to DefaultTokenTTL
}

// NewService creates a pairing Service.
func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	codeTTL := opts.CodeTTL
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	tokenTTL := opts.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		store:    opts.Store,
		signer:   opts.Signer,
		logger:   logger.With("component", "pairing"),
		locks:    newKeyedMutex(),
		codeTTL:  codeTTL,
		tokenTTL: tokenTTL,
	}
}

// GenerateCode mints a short-lived single-use pairing code for a user and
// persists it. The raw code is returned exactly once; it is never logged.
func (s *Service) GenerateCode(ctx context.Context, userID string) (*store.PairingToken, error) {
	code, err := NewCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	token := &store.PairingToken{
		Code:      code,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.store.UpsertPairingToken(ctx, token); err != nil {
		return nil, fmt.Errorf("storing pairing token: %w", err)
	}

	s.logger.Info("pairing code generated", "user_id", userID, "expires_at", token.ExpiresAt)
	return token, nil
}

// LinkResult is the outcome of a successful Link: the minted device token and
// the identity it is bound to.
type LinkResult struct {
	AuthToken string
	UserID    string
	DeviceID  string
	ExpiresAt time.Time
}

// Link consumes a pairing code and binds the device to the code's user.
// Consumption is atomic: of two concurrent attempts with the same code,
// exactly one wins and the other sees ErrCodeNotFound. The linked device is
// immediately resolvable as a terminal sender.
func (s *Service) Link(ctx context.Context, code, deviceID, deviceName string) (*LinkResult, error) {
	if deviceID == "" {
		return nil, errors.New("device id is required")
	}
	code = NormalizeCode(code)

	key := deviceLockKey(deviceID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	device := &store.LinkedDevice{
		Platform:    message.PlatformTerminal,
		DeviceID:    deviceID,
		DisplayName: deviceName,
		Status:      store.DeviceStatusActive,
	}
	userID, err := s.store.ConsumePairingToken(ctx, code, device)
	if errors.Is(err, store.ErrPairingTokenNotFound) {
		return nil, ErrCodeNotFound
	}
	if errors.Is(err, store.ErrPairingTokenExpired) {
		return nil, ErrCodeExpired
	}
	if err != nil {
		return nil, fmt.Errorf("consuming pairing token: %w", err)
	}

	token, expiresAt, err := s.signer.GenerateDeviceToken(userID, deviceID, message.PlatformTerminal, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("device linked", "user_id", userID, "device_id", deviceID)
	return &LinkResult{
		AuthToken: token,
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate performs full two-phase validation of a device token: signature
// and expiry first, then the device's live status in the store. Distinct
// errors per failure cause:
//
//	auth.ErrInvalidToken  signature invalid or malformed
//	auth.ErrExpiredToken  token past its expiry
//	ErrDeviceNotLinked    device record removed (unlinked)
//	ErrDeviceSuspended    device suspended by the user
//	ErrDeviceInactive     device marked inactive
func (s *Service) Validate(ctx context.Context, token string) (*auth.DeviceClaims, error) {
	claims, err := s.signer.VerifyDeviceToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.checkDeviceStatus(ctx, claims.UserID, claims.DeviceID); err != nil {
		return nil, err
	}
	return claims, nil
}

// Refresh exchanges a signature-valid device token for a fresh one. The old
// token may already be expired; the store status check still gates the
// exchange. The previous token is not revoked and remains usable until its
// own expiry. Refresh records device activity via LastUsedAt.
func (s *Service) Refresh(ctx context.Context, token string) (*LinkResult, error) {
	claims, err := s.signer.VerifyDeviceTokenAllowExpired(token)
	if err != nil {
		return nil, err
	}

	key := deviceLockKey(claims.DeviceID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := s.checkDeviceStatus(ctx, claims.UserID, claims.DeviceID); err != nil {
		return nil, err
	}
	if err := s.store.TouchDevice(ctx, claims.UserID, claims.DeviceID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("updating device activity: %w", err)
	}

	fresh, expiresAt, err := s.signer.GenerateDeviceToken(claims.UserID, claims.DeviceID, message.PlatformTerminal, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("device token refreshed", "user_id", claims.UserID, "device_id", claims.DeviceID)
	return &LinkResult{
		AuthToken: fresh,
		UserID:    claims.UserID,
		DeviceID:  claims.DeviceID,
		ExpiresAt: expiresAt,
	}, nil
}

// Unlink removes a device and its terminal identity mapping. Outstanding
// tokens for the device fail validation afterwards with ErrDeviceNotLinked.
func (s *Service) Unlink(ctx context.Context, userID, deviceID string) error {
	key := deviceLockKey(deviceID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	err := s.store.DeleteDevice(ctx, userID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeviceNotLinked
	}
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	s.logger.Info("device unlinked", "user_id", userID, "device_id", deviceID)
	return nil
}

// ListDevices returns all devices linked to a user, newest first.
func (s *Service) ListDevices(ctx context.Context, userID string) ([]*store.LinkedDevice, error) {
	return s.store.ListDevices(ctx, userID)
}

// SweepExpiredCodes deletes pairing codes past their expiry. Expired codes
// already fail consumption; the sweep just keeps the table small.
func (s *Service) SweepExpiredCodes(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredPairingTokens(ctx, time.Now().UTC())
}

// deviceLockKey is the single serialization key for link, refresh and unlink
// on one device. (platform, deviceID) is unique in the store, so every
// mutation of a device record contends on the same lock.
func deviceLockKey(deviceID string) string {
	return string(message.PlatformTerminal) + "|" + deviceID
}

// checkDeviceStatus is the second validation phase: the device must still
// exist and be active.
func (s *Service) checkDeviceStatus(ctx context.Context, userID, deviceID string) error {
	device, err := s.store.GetDevice(ctx, userID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeviceNotLinked
	}
	if err != nil {
		return fmt.Errorf("looking up device: %w", err)
	}
	switch device.Status {
	case store.DeviceStatusActive:
		return nil
	case store.DeviceStatusSuspended:
		return ErrDeviceSuspended
	default:
		return ErrDeviceInactive
	}
}
