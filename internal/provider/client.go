// Package provider contains the HTTP client for the upstream identity
// verification API. Calls are billable and non-idempotent, so the client
// never retries; failures surface to the caller as-is.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Result is the parsed upstream response. Data is kept opaque; the gateway
// only needs success/failure plus a snippet for the audit ledger.
type Result struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Invoker abstracts the upstream call for the verification service.
type Invoker interface {
	InvokeJSON(ctx context.Context, endpoint string, payload map[string]interface{}) (*Result, error)
	InvokeForm(ctx context.Context, endpoint string, fields map[string]string) (*Result, error)
}

type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates a verification provider client. The timeout bounds the
// whole upstream call; a timeout counts as an invocation failure.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// InvokeJSON posts a JSON payload to the given endpoint. The mandatory
// consent parameter is added to every request.
func (c *Client) InvokeJSON(ctx context.Context, endpoint string, payload map[string]interface{}) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("provider API key is not configured")
	}

	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["consent"] = "Y"

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	return c.do(req, endpoint)
}

// InvokeForm posts multipart form fields to the given endpoint.
func (c *Client) InvokeForm(ctx context.Context, endpoint string, fields map[string]string) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("provider API key is not configured")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	if err := mw.WriteField("consent", "Y"); err != nil {
		return nil, fmt.Errorf("failed to write consent field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuthHeaders(req)

	return c.do(req, endpoint)
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Auth-Type", "API-Key")
}

func (c *Client) do(req *http.Request, endpoint string) (*Result, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider call to %s failed: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	var parsed struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("provider returned malformed response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Status != http.StatusOK {
		msg := "request failed"
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("provider call to %s failed: %s (HTTP %d)", endpoint, msg, resp.StatusCode)
	}

	return &Result{Code: parsed.Status, Message: "OK", Data: parsed.Data}, nil
}
