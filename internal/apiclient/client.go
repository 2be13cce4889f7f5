// Package apiclient talks to the habit tracker REST API on behalf of the
// offline client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/constants"
	"github.com/yukikurage/habit-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/habit-tracker-api/internal/errors"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 15 * time.Second

// ErrNoSession is returned by calls that need a login when none is held.
var ErrNoSession = errors.New("no session, log in first")

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	apierrors.APIError
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Client is a small JSON client holding the session cookie.
type Client struct {
	base *url.URL
	http *http.Client

	mu      sync.RWMutex
	session string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession restores a previously saved session cookie.
func WithSession(value string) Option {
	return func(c *Client) { c.session = value }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base: base,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Session returns the current session cookie value, "" when logged out.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// Health returns nil when the server and its store are reachable.
func (c *Client) Health(ctx context.Context) error {
	var out HealthStatus
	return c.do(ctx, http.MethodGet, "/health", nil, &out)
}

// Login authenticates and keeps the session cookie.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.UserDTO, error) {
	body := map[string]string{"email": email, "password": password}
	var user dto.UserDTO
	if err := c.do(ctx, http.MethodPost, "/login", body, &user); err != nil {
		return nil, err
	}
	if c.Session() == "" {
		return nil, errors.New("server did not start a session")
	}
	return &user, nil
}

// Logout ends the session on the server and forgets the cookie.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/logout", nil, nil)
	c.setSession("")
	return err
}

// Me returns the session user.
func (c *Client) Me(ctx context.Context) (*dto.UserDTO, error) {
	var user dto.UserDTO
	if err := c.authed(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Snapshot downloads everything the replica mirrors.
func (c *Client) Snapshot(ctx context.Context) (*dto.SnapshotResponse, error) {
	var snap dto.SnapshotResponse
	if err := c.authed(ctx, http.MethodGet, "/sync/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Push uploads local changes.
func (c *Client) Push(ctx context.Context, req dto.PushRequest) (*dto.PushResponse, error) {
	var res dto.PushResponse
	if err := c.authed(ctx, http.MethodPost, "/sync/push", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateHabit creates a habit on the server. Habits get their ids there, so
// this only works online.
func (c *Client) CreateHabit(ctx context.Context, userID uint64, name, frequency string) (*dto.HabitDTO, error) {
	body := map[string]any{"name": name, "frequency": frequency, "userId": userID}
	var habit dto.HabitDTO
	if err := c.do(ctx, http.MethodPost, "/habits", body, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	if c.Session() == "" {
		return ErrNoSession
	}
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session := c.Session(); session != "" {
		req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: session})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name != constants.SessionCookieName {
			continue
		}
		if cookie.MaxAge < 0 || cookie.Value == "" {
			c.setSession("")
		} else {
			c.setSession(cookie.Value)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&se.APIError)
		return se
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) setSession(value string) {
	c.mu.Lock()
	c.session = value
	c.mu.Unlock()
}
