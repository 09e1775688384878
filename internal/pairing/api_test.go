// ABOUTME: HTTP tests for the terminal pairing endpoints
// ABOUTME: Covers the full pair/validate/refresh/unlink flow and status code mapping

package pairing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierhq/courier-gateway/internal/auth"
	"github.com/courierhq/courier-gateway/internal/store"
)

// fakeSessionAuth injects a fixed user, standing in for the session middleware.
func fakeSessionAuth(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
		})
	}
}

func newTestAPI(t *testing.T) (*httptest.Server, *Service, *store.MockStore) {
	t.Helper()
	svc, mock, _ := newTestService(t)

	mux := http.NewServeMux()
	NewAPI(svc, nil).Routes(mux, fakeSessionAuth("user-1"))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc, mock
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestTerminalFlow(t *testing.T) {
	srv, _, _ := newTestAPI(t)

	// Generate a pairing code as the logged-in user
	resp, body := postJSON(t, srv.URL+"/terminal/generate-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	code, _ := body["code"].(string)
	require.NotEmpty(t, code)
	require.NotEmpty(t, body["expiresAt"])

	// Link a device with the code
	resp, body = postJSON(t, srv.URL+"/terminal/link", map[string]string{
		"pairingToken": code,
		"deviceId":     "device-1",
		"deviceName":   "laptop",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	authToken, _ := body["authToken"].(string)
	require.NotEmpty(t, authToken)
	assert.Equal(t, "user-1", body["userId"])

	// Validate the minted token
	resp, body = postJSON(t, srv.URL+"/terminal/validate", map[string]string{"authToken": authToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "device-1", body["deviceId"])

	// Refresh it
	resp, body = postJSON(t, srv.URL+"/terminal/refresh", map[string]string{"authToken": authToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	freshToken, _ := body["authToken"].(string)
	require.NotEmpty(t, freshToken)

	// The device shows up in the list
	listResp, err := http.Get(srv.URL + "/terminal/devices")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var listBody struct {
		Devices []map[string]any `json:"devices"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listBody))
	require.Len(t, listBody.Devices, 1)
	assert.Equal(t, "device-1", listBody.Devices[0]["deviceId"])

	// Unlink, then both tokens are dead
	resp, body = postJSON(t, srv.URL+"/terminal/unlink", map[string]string{"deviceId": "device-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = postJSON(t, srv.URL+"/terminal/validate", map[string]string{"authToken": freshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "device_not_linked", body["reason"])
}

func TestLinkEndpoint_Rejections(t *testing.T) {
	srv, _, mock := newTestAPI(t)

	now := time.Now().UTC()
	require.NoError(t, mock.UpsertPairingToken(context.Background(), &store.PairingToken{
		Code: "CR-DEAD-CODE", UserID: "user-1",
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}))

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"unknown code", map[string]string{"pairingToken": "CR-ZZZZ-ZZZZ", "deviceId": "d"}, http.StatusNotFound},
		{"expired code", map[string]string{"pairingToken": "CR-DEAD-CODE", "deviceId": "d"}, http.StatusGone},
		{"missing device id", map[string]string{"pairingToken": "CR-ZZZZ-ZZZZ"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, srv.URL+"/terminal/link", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestValidateEndpoint_ReasonStrings(t *testing.T) {
	srv, svc, mock := newTestAPI(t)
	ctx := context.Background()

	token, err := svc.GenerateCode(ctx, "user-1")
	require.NoError(t, err)
	result, err := svc.Link(ctx, token.Code, "device-1", "")
	require.NoError(t, err)

	resp, body := postJSON(t, srv.URL+"/terminal/validate", map[string]string{"authToken": "garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_invalid", body["reason"])

	require.NoError(t, mock.SetDeviceStatus(ctx, "user-1", "device-1", store.DeviceStatusSuspended))
	resp, body = postJSON(t, srv.URL+"/terminal/validate", map[string]string{"authToken": result.AuthToken})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "device_suspended", body["reason"])
}

func TestEndpoints_StoreUnavailable(t *testing.T) {
	srv, _, mock := newTestAPI(t)
	mock.FailWith = assert.AnError

	resp, _ := postJSON(t, srv.URL+"/terminal/generate-token", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/terminal/link", map[string]string{
		"pairingToken": "CR-AAAA-AAAA", "deviceId": "d",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
