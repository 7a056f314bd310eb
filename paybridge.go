// Package paybridge provides the official Go SDK for the PayBridge
// payment-aggregation API.
//
// Covers authentication, API keys, transactions, webhooks, billing and
// settings, plus a shared realtime channel for live dashboard events.
//
// Example:
//
//	client := paybridge.NewClient()
//
//	// Authenticate
//	client.Login(ctx, &paybridge.LoginOptions{Email: "m@shop.io", Password: "..."})
//
//	// REST (sub-module pattern)
//	res := client.Keys().List(ctx)
//	client.Transactions().Initiate(ctx, &paybridge.PaymentOptions{...})
//
//	// Realtime
//	feed := paybridge.NewDashboardFeed(client.Realtime(), paybridge.DashboardFeedHandlers{
//		OnTransactionUpdate: func(tx paybridge.Transaction) { ... },
//	})
//	defer feed.Close()
package paybridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ============================================================================
// Defaults
// ============================================================================

const (
	DefaultBaseURL     = "http://localhost:8000/api"
	DefaultRealtimeURL = "http://localhost:8000"
	DefaultTimeout     = 30 * time.Second
)

const (
	// retryMaxAttempts is the total number of tries for one logical
	// request when the transport keeps failing.
	retryMaxAttempts = 3
	// retryBaseDelay is the delay before the second try; it doubles
	// on each subsequent one (1s, 2s).
	retryBaseDelay = 1 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client is the PayBridge API client. All methods are safe for
// concurrent use. The credential store is the single source of truth
// for tokens: it is re-read at the point of every request so that a
// refresh performed by one in-flight call is visible to the next.
type Client struct {
	baseURL     string
	realtimeURL string
	httpClient  *http.Client
	store       CredentialStore
	logger      *slog.Logger
	onExpired   func()

	// sleep is the backoff wait; swapped for a virtual clock in tests.
	sleep func(ctx context.Context, d time.Duration) error

	rtCfg    RealtimeConfig
	realtime *ChannelManager

	profile      *ProfileClient
	keys         *KeysClient
	transactions *TransactionsClient
	billing      *BillingClient
	webhooks     *WebhooksClient
	settings     *SettingsClient
}

type ClientOption func(*Client)

// WithBaseURL overrides the REST API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRealtimeURL overrides the realtime channel base URL.
func WithRealtimeURL(u string) ClientOption {
	return func(c *Client) { c.realtimeURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithCredentialStore replaces the default in-memory credential store,
// e.g. with a FileStore for tokens that survive restarts.
func WithCredentialStore(store CredentialStore) ClientOption {
	return func(c *Client) { c.store = store }
}

// WithLogger sets the logger used for retry and realtime diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithRealtimeConfig overrides the realtime reconnection policy.
func WithRealtimeConfig(cfg RealtimeConfig) ClientOption {
	return func(c *Client) { c.rtCfg = cfg }
}

// WithSessionExpiredHandler registers a callback fired when a 401 could
// not be recovered by a token refresh and the stored credentials were
// cleared. The hosting application decides what to do (e.g. show the
// login screen); the SDK performs no navigation of its own.
func WithSessionExpiredHandler(fn func()) ClientOption {
	return func(c *Client) { c.onExpired = fn }
}

// NewClient creates a new PayBridge client. Without options it talks to
// a local backend with an empty in-memory credential store; call Login
// or seed the store to authenticate.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		realtimeURL: DefaultRealtimeURL,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		store:       NewMemoryStore(),
		logger:      slog.Default(),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.realtime = newChannelManager(c.realtimeURL, c.store, c.logger, c.rtCfg)
	c.profile = &ProfileClient{c: c}
	c.keys = &KeysClient{c: c}
	c.transactions = &TransactionsClient{c: c}
	c.billing = &BillingClient{c: c}
	c.webhooks = &WebhooksClient{c: c}
	c.settings = &SettingsClient{c: c}
	return c
}

// Realtime returns the shared realtime channel manager.
func (c *Client) Realtime() *ChannelManager { return c.realtime }

// Profile returns the profile sub-client.
func (c *Client) Profile() *ProfileClient { return c.profile }

// Keys returns the API-key sub-client.
func (c *Client) Keys() *KeysClient { return c.keys }

// Transactions returns the transactions sub-client.
func (c *Client) Transactions() *TransactionsClient { return c.transactions }

// Billing returns the billing sub-client.
func (c *Client) Billing() *BillingClient { return c.billing }

// Webhooks returns the webhook-subscription sub-client.
func (c *Client) Webhooks() *WebhooksClient { return c.webhooks }

// Settings returns the settings sub-client.
func (c *Client) Settings() *SettingsClient { return c.settings }

// ============================================================================
// Request core
// ============================================================================

// Call performs one logical API request: bearer attach, transient-
// failure retry with backoff, one-shot refresh-and-replay on 401. It
// never returns a Go error; every outcome is a normalized Result.
func (c *Client) Call(ctx context.Context, method, endpoint string, body interface{}) *Result {
	return c.call(ctx, method, endpoint, body, nil)
}

func (c *Client) call(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string) *Result {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Result{Err: fmt.Sprintf("failed to marshal request: %v", err), Status: 0}
		}
		payload = b
	}

	resp, err := c.send(ctx, method, endpoint, payload, headers)
	if err != nil {
		return &Result{Err: err.Error(), Status: 0}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()

		access, ok := c.refreshAccessToken(ctx)
		if !ok {
			c.expireSession()
			return &Result{Err: "Session expired", Status: http.StatusUnauthorized}
		}

		// Replay the original request exactly once with the new token.
		// A second 401 is returned as-is; never a second refresh cycle.
		resp, err = c.attempt(ctx, method, endpoint, payload, headers, access)
		if err != nil {
			return &Result{Err: err.Error(), Status: 0}
		}
	}

	return c.normalize(resp)
}

// send runs the retry loop for transport failures. HTTP error statuses
// are responses, not failures, and pass straight through.
func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, retryBaseDelay, 0)
			c.logger.Debug("retrying request", "endpoint", endpoint, "attempt", attempt+1, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, method, endpoint, payload, headers, "")
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// attempt performs a single HTTP round trip. The access token is read
// from the store here, at the point of use, unless an override token is
// supplied (the refresh replay path).
func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, headers map[string]string, tokenOverride string) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	token := tokenOverride
	if token == "" {
		cred, err := c.store.Get()
		if err != nil {
			c.logger.Warn("credential store read failed", "error", err)
		}
		token = cred.AccessToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.httpClient.Do(req)
}

// normalize converts an HTTP response into a Result.
func (c *Client) normalize(resp *http.Response) *Result {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{Err: fmt.Sprintf("failed to read response: %v", err), Status: 0}
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	if resp.StatusCode == http.StatusNoContent || len(raw) == 0 || !isJSON {
		raw = nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if raw != nil && !json.Valid(raw) {
			return &Result{Err: "malformed response body", Status: 0}
		}
		return &Result{Data: raw, Status: resp.StatusCode}
	}

	res := &Result{Status: resp.StatusCode}
	var eb errBody
	if raw != nil && json.Unmarshal(raw, &eb) == nil {
		res.Err = eb.Detail
		if res.Err == "" {
			res.Err = eb.Error
		}
		res.FieldErrors = eb.Errors
	}
	if res.Err == "" {
		res.Err = "An error occurred"
	}
	return res
}

// isRetryable classifies an error from http.Client.Do. Transport
// failures (connection refused, DNS, timeouts before a response) are
// retryable; a received HTTP response never reaches this path, and a
// cancelled context must not restart the loop.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// backoffDelay returns the wait before retry number attempt+1: the base
// delay doubled per attempt, capped at max when max is nonzero.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base << uint(attempt)
	if max > 0 && d > max {
		d = max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ============================================================================
// Authentication
// ============================================================================

// Login authenticates with POST /auth/login/ and persists the returned
// token pair in the credential store.
func (c *Client) Login(ctx context.Context, opts *LoginOptions) *Result {
	res := c.Call(ctx, http.MethodPost, "/auth/login/", opts)
	if res.OK() {
		var data LoginData
		if err := res.Decode(&data); err == nil && data.Access != "" {
			if err := c.store.Set(Credential{AccessToken: data.Access, RefreshToken: data.Refresh}); err != nil {
				c.logger.Warn("failed to persist credentials", "error", err)
			}
		}
	}
	return res
}

// Register creates a merchant account with POST /auth/register/.
func (c *Client) Register(ctx context.Context, opts *RegisterOptions) *Result {
	return c.Call(ctx, http.MethodPost, "/auth/register/", opts)
}

// Logout clears stored credentials and tears down the realtime channel,
// including all registered handlers.
func (c *Client) Logout() *Result {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear credentials", "error", err)
	}
	c.realtime.reset()
	return &Result{Data: json.RawMessage(`{"message":"Logged out successfully"}`), Status: http.StatusOK}
}

// RequestPasswordReset starts a password reset for the given email or
// phone number.
func (c *Client) RequestPasswordReset(ctx context.Context, emailOrPhone string) *Result {
	return c.Call(ctx, http.MethodPost, "/auth/password/reset/", map[string]string{"email_or_phone": emailOrPhone})
}

// ResetPassword completes a password reset.
func (c *Client) ResetPassword(ctx context.Context, uid, token, newPassword string) *Result {
	return c.Call(ctx, http.MethodPost, "/auth/password/reset/confirm/", map[string]string{
		"uid": uid, "token": token, "new_password": newPassword,
	})
}

// refreshAccessToken attempts exactly one token refresh. On success the
// new access token is persisted alongside the existing refresh token.
// On any failure the store is left untouched; clearing is owned by the
// caller so there is no ambiguity about cleanup on partial failure.
func (c *Client) refreshAccessToken(ctx context.Context) (string, bool) {
	cred, err := c.store.Get()
	if err != nil || cred.RefreshToken == "" {
		return "", false
	}

	payload, _ := json.Marshal(map[string]string{"refresh": cred.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token/refresh/", bytes.NewReader(payload))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("token refresh failed", "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}

	var data struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.Access == "" {
		return "", false
	}

	cred.AccessToken = data.Access
	if err := c.store.Set(cred); err != nil {
		c.logger.Warn("failed to persist refreshed token", "error", err)
	}
	return data.Access, true
}

func (c *Client) expireSession() {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear credentials", "error", err)
	}
	if c.onExpired != nil {
		c.onExpired()
	}
}

// ============================================================================
// GraphQL
// ============================================================================

// GraphQL posts a query to /graphql/ and normalizes GraphQL errors into
// the Result error field. Transport retry and bearer attach follow the
// same rules as Call.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]interface{}) *Result {
	res := c.Call(ctx, http.MethodPost, "/graphql/", map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if !res.OK() || res.Data == nil {
		return res
	}

	var body struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(res.Data, &body); err != nil {
		return &Result{Err: "malformed response body", Status: 0}
	}
	if len(body.Errors) > 0 {
		return &Result{Err: body.Errors[0].Message, Status: res.Status}
	}
	return &Result{Data: body.Data, Status: res.Status}
}

// Analytics fetches the dashboard analytics snapshot, preferring the
// GraphQL endpoint and falling back to REST when it is unavailable.
func (c *Client) Analytics(ctx context.Context) *Result {
	const query = `
	query {
	  analytics {
	    totalTransactions
	    totalVolume
	    successRate
	    averageTransactionSize
	    transactionsByProvider
	    transactionsByStatus
	    dailyVolume
	  }
	}`

	gq := c.GraphQL(ctx, query, nil)
	if gq.OK() && gq.Data != nil {
		var wrapper struct {
			Analytics json.RawMessage `json:"analytics"`
		}
		if json.Unmarshal(gq.Data, &wrapper) == nil && wrapper.Analytics != nil {
			return &Result{Data: wrapper.Analytics, Status: gq.Status}
		}
	}

	rest := c.Call(ctx, http.MethodGet, "/analytics/dashboard/", nil)
	if rest.OK() {
		return rest
	}
	return gq
}
