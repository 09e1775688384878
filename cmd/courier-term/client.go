// ABOUTME: HTTP client for the gateway's terminal pairing and message endpoints
// ABOUTME: Thin JSON-over-HTTP wrapper; errors carry the gateway's reason strings

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// gatewayClient talks to courier-gateway over HTTP.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

func newGatewayClient(baseURL string) *gatewayClient {
	return &gatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type linkResponse struct {
	AuthToken string    `json:"authToken"`
	UserID    string    `json:"userId"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Link exchanges a pairing code for a device token.
func (c *gatewayClient) Link(ctx context.Context, code, deviceID, deviceName string) (*linkResponse, error) {
	var out linkResponse
	err := c.post(ctx, "/terminal/link", "", map[string]string{
		"pairingToken": code,
		"deviceId":     deviceID,
		"deviceName":   deviceName,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type validateResponse struct {
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason"`
	UserID    string    `json:"userId"`
	DeviceID  string    `json:"deviceId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Validate asks the gateway whether a device token is still good.
func (c *gatewayClient) Validate(ctx context.Context, token string) (*validateResponse, error) {
	var out validateResponse
	err := c.post(ctx, "/terminal/validate", "", map[string]string{"authToken": token}, &out)
	if err != nil {
		// 401/403 responses still carry a decodable body with the reason
		var apiErr *apiError
		if asAPIError(err, &apiErr) && apiErr.reason != "" {
			return &validateResponse{Valid: false, Reason: apiErr.reason}, nil
		}
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a device token for a fresh one.
func (c *gatewayClient) Refresh(ctx context.Context, token string) (*linkResponse, error) {
	var out linkResponse
	err := c.post(ctx, "/terminal/refresh", "", map[string]string{"authToken": token}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type sendResponse struct {
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason"`
	MessageID string `json:"messageId"`
}

// Send submits a terminal command line as a message.
func (c *gatewayClient) Send(ctx context.Context, token, text string) (*sendResponse, error) {
	var out sendResponse
	err := c.post(ctx, "/api/messages", token, map[string]any{
		"payload": map[string]any{"command": text},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// apiError is a non-2xx gateway response.
type apiError struct {
	status int
	msg    string
	reason string
}

func (e *apiError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.status, e.msg)
	}
	return fmt.Sprintf("gateway returned %d", e.status)
}

func asAPIError(err error, target **apiError) bool {
	e, ok := err.(*apiError)
	if ok {
		*target = e
	}
	return ok
}

// post sends a JSON request and decodes the JSON response. A bearer token is
// attached when non-empty.
func (c *gatewayClient) post(ctx context.Context, path, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{status: resp.StatusCode}
		var errBody struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(data, &errBody) == nil {
			apiErr.msg = errBody.Error
			apiErr.reason = errBody.Reason
			if apiErr.msg == "" {
				apiErr.msg = errBody.Reason
			}
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
