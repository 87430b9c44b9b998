package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/malibag-society/malibag/internal/fetch"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/transport"
)

// ErrInvalidCredentials indicates the API rejected a login attempt.
var ErrInvalidCredentials = errors.New("ledger: invalid credentials")

// Client issues typed calls through the authenticated transport.
type Client struct {
	api *transport.Client
}

// NewClient wraps the transport.
func NewClient(api *transport.Client) *Client {
	return &Client{api: api}
}

// LoginResult is the payload of a successful authentication.
type LoginResult struct {
	Token string             `json:"token"`
	User  session.UserRecord `json:"user"`
}

// Login exchanges credentials for a token and user record. A rejected
// password is reported as ErrInvalidCredentials; there is no session to
// end at that point.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body, err := c.api.Send(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		if transport.IsAuthLost(err) {
			return LoginResult{}, ErrInvalidCredentials
		}
		var apiErr *transport.Error
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	var result LoginResult
	if err := json.Unmarshal(fetch.Normalize(body), &result); err != nil {
		return LoginResult{}, fmt.Errorf("ledger: decode login response: %w", err)
	}
	if result.Token == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	return result, nil
}

// MutationResult reports a mutation outcome. When Success is false,
// Message carries the server's human-readable reason and the caller
// must leave its prior view state untouched.
type MutationResult struct {
	Success bool
	Data    json.RawMessage
	Message string
}

// Mutate issues a mutating call. Each attempt carries its own
// idempotency key, which deduplicates transport-level replays of that
// one attempt; a deliberate operator resubmission is a new mutation.
func (c *Client) Mutate(ctx context.Context, method, path string, payload any) (MutationResult, error) {
	headers := http.Header{}
	headers.Set("Idempotency-Key", uuid.NewString())

	body, err := c.api.Send(ctx, method, path, payload, headers)
	if err != nil {
		var apiErr *transport.Error
		if errors.As(err, &apiErr) {
			return MutationResult{Success: false, Message: fetch.ErrorMessage(apiErr.Body)}, nil
		}
		// Auth loss and network failures propagate for the caller's
		// redirect/retry handling.
		return MutationResult{}, err
	}

	result := MutationResult{Success: true, Data: fetch.Normalize(body)}
	if ok := gjson.GetBytes(body, "success"); ok.Exists() && !ok.Bool() {
		result.Success = false
		result.Message = fetch.ErrorMessage(body)
	}
	return result, nil
}
