// ABOUTME: HTTP handlers for the terminal pairing and device token endpoints
// ABOUTME: Maps pairing errors to precise status codes and machine-readable reasons

package pairing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/courierhq/courier-gateway/internal/auth"
)

// API serves the /terminal/* endpoints.
type API struct {
	service *Service
	logger  *slog.Logger
}

// NewAPI creates the pairing HTTP API over a Service.
func NewAPI(service *Service, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{service: service, logger: logger.With("component", "pairing-api")}
}

// Routes registers the terminal endpoints on mux. Endpoints that act on
// behalf of a logged-in user are wrapped with sessionAuth; the device-token
// endpoints authenticate with the token in the request body instead.
func (a *API) Routes(mux *http.ServeMux, sessionAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /terminal/generate-token", sessionAuth(http.HandlerFunc(a.handleGenerateToken)))
	mux.Handle("POST /terminal/unlink", sessionAuth(http.HandlerFunc(a.handleUnlink)))
	mux.Handle("GET /terminal/devices", sessionAuth(http.HandlerFunc(a.handleListDevices)))
	mux.HandleFunc("POST /terminal/link", a.handleLink)
	mux.HandleFunc("POST /terminal/validate", a.handleValidate)
	mux.HandleFunc("POST /terminal/refresh", a.handleRefresh)
}

func (a *API) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	token, err := a.service.GenerateCode(r.Context(), userID)
	if err != nil {
		a.logger.Error("pairing code generation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not generate pairing token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":      token.Code,
		"expiresAt": token.ExpiresAt.Format(time.RFC3339),
	})
}

type linkRequest struct {
	PairingToken string `json:"pairingToken"`
	DeviceID     string `json:"deviceId"`
	DeviceName   string `json:"deviceName"`
}

func (a *API) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PairingToken == "" || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "pairingToken and deviceId are required")
		return
	}

	result, err := a.service.Link(r.Context(), req.PairingToken, req.DeviceID, req.DeviceName)
	switch {
	case errors.Is(err, ErrCodeNotFound):
		writeError(w, http.StatusNotFound, "pairing token not found or already used")
		return
	case errors.Is(err, ErrCodeExpired):
		writeError(w, http.StatusGone, "pairing token expired")
		return
	case err != nil:
		a.logger.Error("device link failed", "device_id", req.DeviceID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not link device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authToken": result.AuthToken,
		"userId":    result.UserID,
		"deviceId":  result.DeviceID,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
	})
}

type tokenRequest struct {
	AuthToken string `json:"authToken"`
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AuthToken == "" {
		writeError(w, http.StatusBadRequest, "authToken is required")
		return
	}

	claims, err := a.service.Validate(r.Context(), req.AuthToken)
	if err != nil {
		status, reason, ok := validationFailure(err)
		if !ok {
			a.logger.Error("token validation failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "could not validate token")
			return
		}
		writeJSON(w, status, map[string]any{"valid": false, "reason": reason})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"userId":    claims.UserID,
		"deviceId":  claims.DeviceID,
		"platform":  string(claims.Platform),
		"expiresAt": claims.ExpiresAt.Format(time.RFC3339),
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AuthToken == "" {
		writeError(w, http.StatusBadRequest, "authToken is required")
		return
	}

	result, err := a.service.Refresh(r.Context(), req.AuthToken)
	if err != nil {
		status, reason, ok := validationFailure(err)
		if !ok {
			a.logger.Error("token refresh failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "could not refresh token")
			return
		}
		writeJSON(w, status, map[string]any{"error": reason})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authToken": result.AuthToken,
		"userId":    result.UserID,
		"deviceId":  result.DeviceID,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
	})
}

type unlinkRequest struct {
	DeviceID string `json:"deviceId"`
}

func (a *API) handleUnlink(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	var req unlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	err := a.service.Unlink(r.Context(), userID, req.DeviceID)
	switch {
	case errors.Is(err, ErrDeviceNotLinked):
		writeError(w, http.StatusNotFound, "device not linked")
		return
	case err != nil:
		a.logger.Error("device unlink failed", "user_id", userID, "device_id", req.DeviceID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not unlink device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	devices, err := a.service.ListDevices(r.Context(), userID)
	if err != nil {
		a.logger.Error("device list failed", "user_id", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not list devices")
		return
	}

	out := make([]map[string]any, 0, len(devices))
	for _, d := range devices {
		out = append(out, map[string]any{
			"deviceId":    d.DeviceID,
			"displayName": d.DisplayName,
			"status":      string(d.Status),
			"linkedAt":    d.LinkedAt.Format(time.RFC3339),
			"lastUsedAt":  d.LastUsedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out})
}

// validationFailure maps a token failure to its HTTP status and reason
// string. Returns ok=false for transient (store) errors.
func validationFailure(err error) (status int, reason string, ok bool) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "token_expired", true
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingClaim),
		errors.Is(err, auth.ErrWrongTokenUse):
		return http.StatusUnauthorized, "token_invalid", true
	case errors.Is(err, ErrDeviceNotLinked):
		return http.StatusUnauthorized, "device_not_linked", true
	case errors.Is(err, ErrDeviceSuspended):
		return http.StatusForbidden, "device_suspended", true
	case errors.Is(err, ErrDeviceInactive):
		return http.StatusForbidden, "device_inactive", true
	}
	return 0, "", false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
