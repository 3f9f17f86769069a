// Package verifierclient talks to the verifier HTTP API.
package verifierclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// ErrRateLimited is returned when the verifier throttles logins
var ErrRateLimited = errors.New("too many login attempts")

// Dashboard is the premium payload served to an authenticated wallet
type Dashboard struct {
	core.SessionClaim
	Sections []string `json:"sections"`
}

// Client implements ports.Verifier over HTTP
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the verifier at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorResponse struct {
	Error string `json:"error"`
}

// Login exchanges a signed challenge for a session credential
func (c *Client) Login(ctx context.Context, signed core.SignedChallenge) (*core.LoginResult, error) {
	body, err := json.Marshal(signed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	var result core.LoginResult
	status, msg, err := c.do(ctx, http.MethodPost, "/api/auth/login", bytes.NewReader(body), "", &result)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return &result, nil
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", core.ErrBadRequest, msg)
	case http.StatusUnauthorized:
		if msg == "Challenge expired" {
			return nil, core.ErrChallengeExpired
		}
		return nil, core.ErrInvalidSignature
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("verifier returned %d: %s", status, msg)
	}
}

// Verify validates a session credential
func (c *Client) Verify(ctx context.Context, token string) (*core.SessionClaim, error) {
	if token == "" {
		return nil, core.ErrNoToken
	}

	var claim core.SessionClaim
	status, msg, err := c.do(ctx, http.MethodGet, "/api/auth/verify", nil, token, &claim)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return &claim, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidToken, msg)
	default:
		return nil, fmt.Errorf("verifier returned %d: %s", status, msg)
	}
}

// Dashboard fetches the premium content with a session credential
func (c *Client) Dashboard(ctx context.Context, token string) (*Dashboard, error) {
	var dashboard Dashboard
	status, msg, err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, token, &dashboard)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return &dashboard, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidToken, msg)
	default:
		return nil, fmt.Errorf("verifier returned %d: %s", status, msg)
	}
}

// do performs a request and decodes a 200 body into out. Any other status is
// returned along with the server's error message.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, token string, out any) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("verifier unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, "", fmt.Errorf("failed to decode response: %w", err)
		}
		return resp.StatusCode, "", nil
	}

	var e errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
	return resp.StatusCode, e.Error, nil
}

var _ ports.Verifier = (*Client)(nil)
