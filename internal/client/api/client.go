// Package api is the typed HTTP client for the HiveCache server API.
//
// All responses are unwrapped from the versioned envelope. A 401 on an
// authenticated call triggers one token refresh and a single retry; the
// caller is notified of rotated tokens through OnTokens so they can be
// persisted.
package api

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// supportedEnvelopeVersion is the envelope version this client parses.
const supportedEnvelopeVersion = 1

// Client talks to a HiveCache server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	device     DeviceInfo

	// OnTokens is called whenever the server issues a new token pair
	// (login and refresh). Optional.
	OnTokens func(accessToken, refreshToken, sessionID string)

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	Device       DeviceInfo
	RefreshToken string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// New creates a client for the server at opts.BaseURL.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
		device:       opts.Device,
		refreshToken: opts.RefreshToken,
	}
}

// Authenticated reports whether the client has a refresh token to work with.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken != ""
}

func (c *Client) setTokens(resp *AuthResponse) {
	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.mu.Unlock()

	if c.OnTokens != nil {
		c.OnTokens(resp.AccessToken, resp.RefreshToken, resp.SessionID)
	}
}

// === Auth ===

// Login authenticates with email and password and stores the issued tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]any{
		"email":       email,
		"password":    password,
		"device_info": c.device,
	}
	resp, err := doJSON[*AuthResponse](ctx, c, http.MethodPost, "/api/v1/auth/login", body, false)
	if err != nil {
		return nil, err
	}
	c.setTokens(resp)
	return resp, nil
}

// Refresh exchanges the stored refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	token := c.refreshToken
	c.mu.Unlock()
	if token == "" {
		return &Error{Status: 401, Code: "UNAUTHORIZED", Message: "no refresh token; run login first"}
	}

	body := map[string]any{
		"refresh_token": token,
		"device_info":   c.device,
	}
	resp, err := doJSON[*AuthResponse](ctx, c, http.MethodPost, "/api/v1/auth/refresh", body, false)
	if err != nil {
		return err
	}
	c.setTokens(resp)
	return nil
}

// Logout revokes the session on the server and clears local tokens.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	body := map[string]any{"session_id": sessionID}
	type messageResponse struct {
		Message string `json:"message"`
	}
	_, err := doJSON[messageResponse](ctx, c, http.MethodPost, "/api/v1/auth/logout", body, true)

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.mu.Unlock()

	return err
}

// === Instance ===

// GetInstance fetches the public server descriptor. No auth required.
func (c *Client) GetInstance(ctx context.Context) (*Instance, error) {
	return doJSON[*Instance](ctx, c, http.MethodGet, "/api/v1/instance", nil, false)
}

// === Bookmarks ===

// GetBookmark fetches a single bookmark by ID. Returns an *Error with
// Status 404 when the bookmark no longer exists.
func (c *Client) GetBookmark(ctx context.Context, id string) (*Bookmark, error) {
	path := "/api/v1/bookmarks/" + url.PathEscape(id)
	return doJSON[*Bookmark](ctx, c, http.MethodGet, path, nil, true)
}

// === Sync ===

// GetIndexPage fetches one page of the bookmark index snapshot.
// An empty after starts from the newest bookmark.
func (c *Client) GetIndexPage(ctx context.Context, after string, limit int) (*IndexPage, error) {
	path := "/api/v1/users/me/bookmarks/search/index" + pageQuery(after, "after", limit)
	return doJSON[*IndexPage](ctx, c, http.MethodGet, path, nil, true)
}

// GetDiffPage fetches action log entries recorded after the given action
// ID. An empty before replays the log from the beginning.
func (c *Client) GetDiffPage(ctx context.Context, before string, limit int) (*DiffPage, error) {
	path := "/api/v1/users/me/bookmarks/search/diff" + pageQuery(before, "before", limit)
	return doJSON[*DiffPage](ctx, c, http.MethodGet, path, nil, true)
}

func pageQuery(cursor, cursorKey string, limit int) string {
	q := url.Values{}
	if cursor != "" {
		q.Set(cursorKey, cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// === Transport ===

// doJSON sends one request and decodes the enveloped response into T.
// Authenticated requests retry once after a token refresh on 401.
func doJSON[T any](ctx context.Context, c *Client, method, path string, body any, authed bool) (T, error) {
	var zero T

	result, status, err := send[T](ctx, c, method, path, body, authed)
	if err == nil {
		return result, nil
	}
	if !authed || status != http.StatusUnauthorized {
		return zero, err
	}

	c.logger.Debug("access token rejected, refreshing", "path", path)
	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		return zero, refreshErr
	}

	result, _, err = send[T](ctx, c, method, path, body, authed)
	return result, err
}

func send[T any](ctx context.Context, c *Client, method, path string, body any, authed bool) (T, int, error) {
	var zero T

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, 0, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return zero, 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, resp.StatusCode, fmt.Errorf("decode response (%s %s, status %d): %w", method, path, resp.StatusCode, err)
	}
	if env.Version != supportedEnvelopeVersion {
		return zero, resp.StatusCode, fmt.Errorf("unsupported envelope version %d", env.Version)
	}

	if !env.Success || resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return zero, resp.StatusCode, apiErr
	}

	return env.Data, resp.StatusCode, nil
}
