// Package client talks to the timer server over REST and the push channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"timer-tracker/internal/protocol"
)

// ErrNotAuthenticated is returned before a request that needs a session is sent without one.
var ErrNotAuthenticated = errors.New("not authenticated, please login or signup first")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// APIClient is a thin REST client. The session token travels as both the
// X-Session-Id header and the sessionId query parameter.
type APIClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *APIClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// WebsocketURL maps the http(s) base URL onto the ws(s) push endpoint.
func (c *APIClient) WebsocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *APIClient) Signup(ctx context.Context, username, password string) (string, error) {
	return c.credentials(ctx, "/signup", username, password)
}

func (c *APIClient) Login(ctx context.Context, username, password string) (string, error) {
	return c.credentials(ctx, "/login", username, password)
}

func (c *APIClient) credentials(ctx context.Context, path, username, password string) (string, error) {
	var resp protocol.SessionResponse
	body := protocol.Credentials{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp, false); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("server returned no session id")
	}
	return resp.SessionID, nil
}

func (c *APIClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, nil, true)
}

func (c *APIClient) CurrentUser(ctx context.Context) (protocol.User, error) {
	var resp struct {
		User protocol.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/api/user", nil, nil, &resp, true)
	return resp.User, err
}

func (c *APIClient) Timers(ctx context.Context, onlyActive bool) ([]protocol.Timer, error) {
	var query url.Values
	if onlyActive {
		query = url.Values{"active": {"true"}}
	}
	var timers []protocol.Timer
	if err := c.do(ctx, http.MethodGet, "/api/timers", query, nil, &timers, true); err != nil {
		return nil, err
	}
	return timers, nil
}

func (c *APIClient) StartTimer(ctx context.Context, description string) (protocol.Timer, error) {
	var timer protocol.Timer
	err := c.do(ctx, http.MethodPost, "/api/timers", nil, protocol.CreateTimerRequest{Description: description}, &timer, true)
	return timer, err
}

func (c *APIClient) StopTimer(ctx context.Context, id int64) (protocol.Timer, error) {
	var timer protocol.Timer
	err := c.do(ctx, http.MethodPost, "/api/timers/"+strconv.FormatInt(id, 10)+"/stop", nil, nil, &timer, true)
	return timer, err
}

func (c *APIClient) DeleteTimer(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/timers/"+strconv.FormatInt(id, 10), nil, nil, nil, true)
}

func (c *APIClient) Export(ctx context.Context) (protocol.ExportResponse, error) {
	var resp protocol.ExportResponse
	err := c.do(ctx, http.MethodPost, "/api/timers/export", nil, nil, &resp, true)
	return resp, err
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body, out any, authRequired bool) error {
	token := c.Token()
	if authRequired && token == "" {
		return ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	if query == nil {
		query = url.Values{}
	}
	if token != "" {
		query.Set("sessionId", token)
	}
	target := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Session-Id", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var payload protocol.Error
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Reason = payload.Reason
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
