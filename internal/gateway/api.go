// ABOUTME: HTTP ingest and history endpoints for the message gateway
// ABOUTME: Ingest accepts device tokens or user sessions; history is session-only

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/courierhq/courier-gateway/internal/auth"
	"github.com/courierhq/courier-gateway/internal/message"
	"github.com/courierhq/courier-gateway/internal/normalize"
	"github.com/courierhq/courier-gateway/internal/pairing"
	"github.com/courierhq/courier-gateway/internal/store"
)

// API serves the message ingest and history endpoints.
type API struct {
	gateway *Gateway
	pairing *pairing.Service
	signer  *auth.Signer
	logger  *slog.Logger
}

// NewAPI creates the gateway HTTP API.
func NewAPI(gw *Gateway, pairingSvc *pairing.Service, signer *auth.Signer, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		gateway: gw,
		pairing: pairingSvc,
		signer:  signer,
		logger:  logger.With("component", "gateway-api"),
	}
}

// Routes registers the gateway endpoints on mux.
func (a *API) Routes(mux *http.ServeMux, sessionAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/messages", a.handleIngest)
	mux.Handle("GET /api/history", sessionAuth(http.HandlerFunc(a.handleHistory)))
}

// ingestRequest is the JSON body for POST /api/messages. Platform and
// senderId are optional for session callers; device callers always send as
// their own terminal identity regardless of the body.
type ingestRequest struct {
	Platform string         `json:"platform"`
	SenderID string         `json:"senderId"`
	Payload  map[string]any `json:"payload"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	token, errMsg := bearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		writeError(w, http.StatusUnauthorized, errMsg)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Payload == nil {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	raw := normalize.RawMessage{
		Platform: message.Platform(req.Platform),
		SenderID: req.SenderID,
		Payload:  req.Payload,
	}

	// Session tokens and device tokens share the signer. Try the session
	// shape first; a device token pins the sender to its own identity.
	if _, err := a.signer.VerifySessionToken(token); err != nil {
		claims, derr := a.pairing.Validate(r.Context(), token)
		if derr != nil {
			status := http.StatusUnauthorized
			if errors.Is(derr, pairing.ErrDeviceSuspended) || errors.Is(derr, pairing.ErrDeviceInactive) {
				status = http.StatusForbidden
			}
			writeError(w, status, "invalid credentials")
			return
		}
		raw.Platform = claims.Platform
		raw.SenderID = claims.DeviceID
	}

	if raw.Platform != "" && !raw.Platform.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown platform")
		return
	}

	msg, err := a.gateway.Ingest(r.Context(), raw)
	switch {
	case errors.Is(err, ErrDuplicateMessage):
		writeJSON(w, http.StatusOK, map[string]any{"accepted": false, "reason": "duplicate"})
		return
	case errors.Is(err, ErrSenderNotLinked):
		writeError(w, http.StatusForbidden, "sender not linked")
		return
	case errors.Is(err, normalize.ErrUnknownPlatform):
		writeError(w, http.StatusBadRequest, "unknown platform")
		return
	case err != nil:
		a.logger.Error("ingest failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not process message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accepted":  true,
		"messageId": msg.ID,
		"platform":  string(msg.Platform),
		"userId":    msg.InternalUserID,
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	filter := store.MessageLogFilter{UserID: userID}
	q := r.URL.Query()
	if p := q.Get("platform"); p != "" {
		platform := message.Platform(p)
		if !platform.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown platform")
			return
		}
		filter.Platform = platform
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = &since
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := a.gateway.store.ListMessageLog(r.Context(), filter)
	if err != nil {
		a.logger.Error("history query failed", "user_id", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not load history")
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{
			"id":        e.ID,
			"messageId": e.MessageID,
			"platform":  string(e.Platform),
			"senderId":  e.PlatformUserID,
			"text":      e.Text,
			"success":   e.Success,
			"timestamp": e.Timestamp.Format(time.RFC3339),
		}
		if e.Reason != "" {
			item["reason"] = e.Reason
		}
		if e.ReplyToID != "" {
			item["replyToId"] = e.ReplyToID
		}
		if len(e.Attachments) > 0 {
			atts := make([]map[string]any, 0, len(e.Attachments))
			for _, att := range e.Attachments {
				atts = append(atts, map[string]any{
					"kind":     string(att.Kind),
					"locator":  att.Locator,
					"mimeType": att.MimeType,
				})
			}
			item["attachments"] = atts
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// bearerToken extracts a bearer token from an Authorization header value.
// Returns the token and an error message (empty on success).
func bearerToken(header string) (string, string) {
	const prefix = "Bearer "
	if header == "" {
		return "", "missing authorization header"
	}
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", "invalid authorization header format"
	}
	return header[len(prefix):], ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
