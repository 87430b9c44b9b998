// Package transport wraps every call to the remote ledger API with the
// current bearer credential and turns protocol-level authentication
// failures into a global end-of-session event.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ErrAuthLost is returned when the API answered 401. By the time a
// caller sees it, the session has already been reset and persisted.
var ErrAuthLost = errors.New("transport: authentication lost")

// Error carries a non-2xx, non-401 response for per-call handling.
type Error struct {
	Status int
	Body   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: api responded %d", e.Status)
}

// IsAuthLost reports whether err stems from a rejected credential.
func IsAuthLost(err error) bool {
	return errors.Is(err, ErrAuthLost)
}

// TokenSource yields the bearer token as of send time. The session
// store satisfies it, so a token replaced between two calls is always
// used fresh.
type TokenSource interface {
	Token() string
}

// Client performs authenticated calls against the ledger API.
type Client struct {
	base     string
	http     *http.Client
	tokens   TokenSource
	authLost *AuthLostHub
	logger   *slog.Logger
}

// NewClient constructs a Client rooted at baseURL. httpClient may be
// nil, in which case http.DefaultClient semantics apply.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, authLost *AuthLostHub, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		tokens:   tokens,
		authLost: authLost,
		logger:   logger,
	}
}

// Get fetches path and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, nil)
}

// Send issues a mutating call with a JSON payload. payload may be nil.
// headers, when non-nil, are added to the request.
func (c *Client) Send(ctx context.Context, method, path string, payload any, headers http.Header) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("transport: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, headers)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers http.Header) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// The credential is read at send time, never captured earlier.
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}

	if res.StatusCode == http.StatusUnauthorized {
		// End the whole session before the caller sees the failure, so
		// downstream error handlers observe the post-logout state.
		c.logger.Warn("api rejected credential, ending session",
			slog.String("method", method), slog.String("path", path))
		if c.authLost != nil {
			c.authLost.Publish(ctx)
		}
		return nil, ErrAuthLost
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &Error{Status: res.StatusCode, Body: data}
	}
	return data, nil
}
