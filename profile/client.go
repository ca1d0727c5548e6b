package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
)

const (
	// DefaultPath is the profile endpoint relative to the base URL.
	DefaultPath = "/auth/me"
	// DefaultTimeout applies when the caller's client has none.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

// ErrProfileUnavailable wraps every failure to obtain a valid profile.
var ErrProfileUnavailable = errors.New("profile unavailable")

// APIError is a non-2xx response from the profile endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("profile endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("profile endpoint returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match [ErrProfileUnavailable].
func (e *APIError) Unwrap() error {
	return ErrProfileUnavailable
}

// IsAuthError reports whether the backend rejected the caller's credentials.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client calls the backend profile endpoint.
type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

// Option customises a [Client].
type Option func(*Client)

// WithPath overrides [DefaultPath].
func WithPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.path = path
		}
	}
}

// WithHTTPClient sets the transport. It is expected to authenticate
// requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New returns a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchProfile returns the current user as the backend sees it.
func (c *Client) FetchProfile(ctx context.Context) (*session.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProfileUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrProfileUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProfileUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	user, err := session.DecodeUser(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	return user, nil
}
