package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oshokin/equipment-monitor/internal/config"
	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/logger"
)

// offlineToken is the fixed token handed out when offline mode is active.
const offlineToken = "offline-token"

// errAddressRequired is returned when the base URL is missing.
var errAddressRequired = errors.New("base URL must be provided")

// Client talks to the remote monitoring API with bearer authentication.
// A 401 on an authenticated call triggers exactly one re-login and one retry;
// every other failure is surfaced to the caller, which owns the retry policy.
type Client struct {
	// http is the underlying resty client carrying base URL and timeout.
	http *resty.Client
	// username is the login name.
	username string
	// password is the login password.
	password string
	// offline bypasses all network I/O when true.
	offline bool

	// mu protects the token fields.
	mu sync.Mutex
	// token is the current bearer token; empty when unauthenticated.
	token string
	// tokenExpiresAt is the advertised expiry, zero when the API omits it.
	tokenExpiresAt time.Time
}

// Option configures client behaviour.
type Option func(*Client)

// WithTimeout sets the per-call timeout on the underlying HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

// WithOfflineMode toggles offline mode regardless of configuration.
func WithOfflineMode(offline bool) Option {
	return func(c *Client) {
		c.offline = offline
	}
}

// New creates a client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg.APIURL == "" && !cfg.OfflineMode {
		return nil, errAddressRequired
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		username: cfg.Username,
		password: cfg.Password,
		offline:  cfg.OfflineMode,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Offline reports whether the client bypasses network I/O.
func (c *Client) Offline() bool {
	return c.offline
}

// loginResponse is the payload of /auth/login and /auth/refresh.
type loginResponse struct {
	// AccessToken is the bearer token for authenticated calls.
	AccessToken string `json:"access_token"`
	// ExpiresAt is the optional Unix expiry timestamp.
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context) error {
	if c.offline {
		c.setToken(offlineToken, 0)
		logger.Warn(ctx, "Offline mode active, login simulated")

		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"username": c.username,
			"password": c.password,
		}).
		Post("/auth/login")
	if err != nil {
		return &AuthError{Reason: "host unreachable", Err: err}
	}

	if !resp.IsSuccess() {
		return &AuthError{Reason: fmt.Sprintf("login rejected with status %d", resp.StatusCode())}
	}

	var result loginResponse
	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return &AuthError{Reason: "malformed login response", Err: err}
	}

	c.setToken(result.AccessToken, result.ExpiresAt)

	logger.Info(ctx, "Logged in to monitoring API")

	return nil
}

// EnsureToken performs a lazy login when no token is held.
func (c *Client) EnsureToken(ctx context.Context) error {
	if c.currentToken() != "" {
		return nil
	}

	return c.Login(ctx)
}

// Refresh renews the access token via the refresh endpoint.
// With no token held, or when the refresh is rejected, it falls back to a full login.
func (c *Client) Refresh(ctx context.Context) error {
	if c.offline {
		return nil
	}

	token := c.currentToken()
	if token == "" {
		return c.Login(ctx)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post("/auth/refresh")
	if err != nil {
		return &AuthError{Reason: "host unreachable", Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		logger.Warn(ctx, "Refresh token rejected, performing full login")

		return c.Login(ctx)
	}

	if !resp.IsSuccess() {
		return &APIError{StatusCode: resp.StatusCode(), Endpoint: "/auth/refresh"}
	}

	var result loginResponse
	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return &AuthError{Reason: "malformed refresh response", Err: err}
	}

	c.setToken(result.AccessToken, result.ExpiresAt)

	logger.Info(ctx, "Access token refreshed")

	return nil
}

// SubmitEvents POSTs a batch of events.
// On 401 it re-logins once and retries the same batch once; any other
// non-2xx status or transport error is surfaced as *APIError without retry.
func (c *Client) SubmitEvents(ctx context.Context, batch []domain.Event) error {
	if len(batch) == 0 {
		return nil
	}

	if c.offline {
		logger.InfoKV(ctx, "Offline mode active, events discarded", "count", len(batch))

		return nil
	}

	payload := map[string]any{"events": batch}

	status, err := c.post(ctx, "/events", payload)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		logger.Warn(ctx, "Got 401 on event submission, re-authenticating")

		if err = c.Login(ctx); err != nil {
			return err
		}

		status, err = c.post(ctx, "/events", payload)
		if err != nil {
			return err
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &APIError{StatusCode: status, Endpoint: "/events"}
	}

	logger.InfoKV(ctx, "Events submitted", "count", len(batch))

	return nil
}

// GetStatus queries the API health endpoint. Best-effort, read-only.
func (c *Client) GetStatus(ctx context.Context) (map[string]any, error) {
	if c.offline {
		return map[string]any{"status": "offline"}, nil
	}

	if err := c.EnsureToken(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.currentToken()).
		Get("/status")
	if err != nil {
		return nil, &APIError{Endpoint: "/status", Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Endpoint: "/status"}
	}

	var result map[string]any
	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return result, nil
}

// post sends an authenticated POST and returns the response status code.
// Transport errors come back as *APIError with a zero status code.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (int, error) {
	if err := c.EnsureToken(ctx); err != nil {
		return 0, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.currentToken()).
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return 0, &APIError{Endpoint: endpoint, Err: err}
	}

	return resp.StatusCode(), nil
}

// currentToken returns the held token under the lock.
func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

// setToken stores the token and its optional expiry.
func (c *Client) setToken(token string, expiresAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token

	if expiresAt > 0 {
		c.tokenExpiresAt = time.Unix(expiresAt, 0)
	} else {
		c.tokenExpiresAt = time.Time{}
	}
}
