// Package agent calls the hosted AI functions behind the sponsorship CRM.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

// Error is a failure reported by a remote function or its transport.
type Error struct {
	Function string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s failed (%d): %s", e.Function, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Function, e.Message)
}

// Invoker posts a JSON payload to a named remote function and returns its data field.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload any, requestID string) (json.RawMessage, error)
}

// FunctionInvoker calls functions mounted under one base URL.
type FunctionInvoker struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewFunctionInvoker builds an invoker. With no client and no API key it tries an
// ID token client for the base URL, falling back to a plain client.
func NewFunctionInvoker(client *http.Client, baseURL, apiKey string, timeout time.Duration) *FunctionInvoker {
	if baseURL == "" {
		panic("functions base URL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
		if apiKey == "" {
			if idc, err := idtoken.NewClient(context.Background(), baseURL); err == nil {
				idc.Timeout = timeout
				client = idc
			}
		}
	}
	return &FunctionInvoker{client: client, baseURL: baseURL, apiKey: apiKey}
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Invoke performs one POST round trip. There are no retries.
func (c *FunctionInvoker) Invoke(ctx context.Context, function string, payload any, requestID string) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+function, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create function request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Function: function, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Function: function, Status: resp.StatusCode, Message: "could not read response"}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		return nil, &Error{Function: function, Status: resp.StatusCode, Message: errorMessage(env, raw, decodeErr)}
	}
	if decodeErr != nil && len(bytes.TrimSpace(raw)) > 0 {
		return nil, &Error{Function: function, Status: resp.StatusCode, Message: "could not decode response"}
	}
	if env.Error != "" || (env.Success != nil && !*env.Success) {
		return nil, &Error{Function: function, Status: resp.StatusCode, Message: errorMessage(env, raw, nil)}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &Error{Function: function, Status: resp.StatusCode, Message: "response carried no data"}
	}
	return env.Data, nil
}

func errorMessage(env envelope, raw []byte, decodeErr error) string {
	if decodeErr == nil && env.Error != "" {
		return env.Error
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || decodeErr == nil {
		return "function returned an error"
	}
	return text
}

var _ Invoker = (*FunctionInvoker)(nil)
