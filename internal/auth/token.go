// ABOUTME: JWT signing and verification for device auth tokens and user sessions
// ABOUTME: Uses HS256 with a configurable secret; device tokens bind user+device+platform

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courierhq/courier-gateway/internal/message"
)

// Token errors. Expired and invalid are distinct so a client can decide
// whether to refresh or to re-pair.
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrMissingClaim  = errors.New("missing required claim")
	ErrWrongTokenUse = errors.New("token not valid for this use")
)

// Token type claims distinguish long-lived device credentials from
// interactive user sessions signed with the same secret.
const (
	tokenUseDevice  = "device"
	tokenUseSession = "session"
)

// DeviceClaims are the verified contents of a device auth token.
type DeviceClaims struct {
	UserID    string
	DeviceID  string
	Platform  message.Platform
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Signer issues and verifies HS256 signed tokens.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer with the given secret.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret must not be empty")
	}
	return &Signer{secret: secret}, nil
}

// GenerateDeviceToken mints a signed device token bound to a user, device and
// platform, expiring after ttl. Returns the token and its expiry.
func (s *Signer) GenerateDeviceToken(userID, deviceID string, platform message.Platform, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"did": deviceID,
		"plt": string(platform),
		"use": tokenUseDevice,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing device token: %w", err)
	}
	return token, expiresAt.UTC(), nil
}

// VerifyDeviceToken checks the signature and expiry of a device token and
// extracts its claims. This is the cheap first phase of validation; the
// caller must still check the device's live status in the store.
func (s *Signer) VerifyDeviceToken(tokenString string) (*DeviceClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if use, _ := claims["use"].(string); use != tokenUseDevice {
		return nil, ErrWrongTokenUse
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	did, _ := claims["did"].(string)
	if did == "" {
		return nil, fmt.Errorf("%w: did", ErrMissingClaim)
	}
	plt, _ := claims["plt"].(string)

	dc := &DeviceClaims{
		UserID:   sub,
		DeviceID: did,
		Platform: message.Platform(plt),
	}
	if iat, ok := claims["iat"].(float64); ok {
		dc.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := claims["exp"].(float64); ok {
		dc.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return dc, nil
}

// VerifyDeviceTokenAllowExpired behaves like VerifyDeviceToken but accepts a
// token whose expiry has passed, as long as the signature is valid. Used by
// refresh, where the store lookup still gates the outcome.
func (s *Signer) VerifyDeviceTokenAllowExpired(tokenString string) (*DeviceClaims, error) {
	dc, err := s.VerifyDeviceToken(tokenString)
	if errors.Is(err, ErrExpiredToken) {
		token, parseErr := jwt.Parse(tokenString, s.keyFunc, jwt.WithoutClaimsValidation())
		if parseErr != nil || !token.Valid {
			return nil, ErrInvalidToken
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return nil, ErrInvalidToken
		}
		if use, _ := claims["use"].(string); use != tokenUseDevice {
			return nil, ErrWrongTokenUse
		}
		sub, _ := claims["sub"].(string)
		did, _ := claims["did"].(string)
		if sub == "" || did == "" {
			return nil, fmt.Errorf("%w: sub/did", ErrMissingClaim)
		}
		plt, _ := claims["plt"].(string)
		expired := &DeviceClaims{UserID: sub, DeviceID: did, Platform: message.Platform(plt)}
		if exp, ok := claims["exp"].(float64); ok {
			expired.ExpiresAt = time.Unix(int64(exp), 0).UTC()
		}
		return expired, nil
	}
	return dc, err
}

// GenerateSessionToken mints a signed user session token.
func (s *Signer) GenerateSessionToken(userID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"use": tokenUseSession,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return token, expiresAt.UTC(), nil
}

// VerifySessionToken validates a session token and returns the user ID.
func (s *Signer) VerifySessionToken(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}

	if use, _ := claims["use"].(string); use != tokenUseSession {
		return "", ErrWrongTokenUse
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// keyFunc validates the signing method and returns the secret.
func (s *Signer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}

// parse verifies signature and expiry, returning the raw claims.
func (s *Signer) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, s.keyFunc)
	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
