// ABOUTME: HTTP middleware and login handler for user session authentication
// ABOUTME: Extracts session JWTs from Authorization headers; login checks bcrypt secrets

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/courierhq/courier-gateway/internal/store"
)

// UserStore provides the user lookups the middleware and login handler need.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetUserByName(ctx context.Context, name string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// SessionMiddleware creates an HTTP middleware that validates a session token
// and adds the user ID to the request context. The user must still exist.
func SessionMiddleware(users UserStore, signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			userID, err := signer.VerifySessionToken(token)
			if err != nil {
				http.Error(w, `{"error":"invalid session"}`, http.StatusUnauthorized)
				return
			}

			if _, err := users.GetUser(r.Context(), userID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					http.Error(w, `{"error":"unknown user"}`, http.StatusUnauthorized)
					return
				}
				http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

// SessionTTL is how long an interactive session token remains valid.
const SessionTTL = 12 * time.Hour

// loginRequest is the JSON request body for POST /session/login.
type loginRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// loginResponse is the JSON response for a successful login.
type loginResponse struct {
	SessionToken string `json:"sessionToken"`
	UserID       string `json:"userId"`
	ExpiresAt    string `json:"expiresAt"`
}

// LoginHandler exchanges a user name + secret for a session token.
type LoginHandler struct {
	users  UserStore
	signer *Signer
	logger *slog.Logger
}

// NewLoginHandler creates a LoginHandler.
func NewLoginHandler(users UserStore, signer *Signer, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{users: users, signer: signer, logger: logger.With("component", "auth")}
}

// dummyHash keeps secret comparison constant-time when the user is unknown.
var dummyHash = func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("courier-dummy-secret"), bcrypt.DefaultCost)
	return string(h)
}()

// ServeHTTP handles POST /session/login.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Secret == "" {
		http.Error(w, `{"error":"name and secret are required"}`, http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByName(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Constant-timing dummy comparison before rejecting
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(req.Secret))
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user lookup failed", "error", err)
		http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SecretHash), []byte(req.Secret)); err != nil {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.signer.GenerateSessionToken(user.ID, SessionTTL)
	if err != nil {
		h.logger.Error("session token generation failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("session issued", "user_id", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		SessionToken: token,
		UserID:       user.ID,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
	})
}
