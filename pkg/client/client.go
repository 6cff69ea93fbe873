// Package client is the Go SDK for the auth service's HTTP API. The
// sign-in orchestrator uses it as its token-exchange boundary.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the auth service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

// Config holds configuration for the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: cfg.BaseURL,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SetToken sets the session credential used for authenticated requests.
func (c *Client) SetToken(token string) {
	c.Token = token
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.Details = payload.Details
		}
		return apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

// ExchangeToken trades a third-party identity token for a backend
// session credential.
func (c *Client) ExchangeToken(ctx context.Context, identityToken string) (string, error) {
	var res struct {
		CustomToken string `json:"customToken"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/api/auth/google",
		map[string]string{"idToken": identityToken}, &res)
	if err != nil {
		return "", err
	}
	return res.CustomToken, nil
}

// SignInStart is the server's answer to a flow-start request: the
// consent URL to open and the one-time state bound to it.
type SignInStart struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// StartGoogleSignIn asks the server to begin the authorization-code
// flow. The native layer opens the returned URL and reports the
// resulting code together with the state.
func (c *Client) StartGoogleSignIn(ctx context.Context) (*SignInStart, error) {
	var res SignInStart
	if err := c.doRequest(ctx, http.MethodGet, "/api/auth/google/start", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ExchangeCode completes the native-bridge authorization-code flow.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) (string, error) {
	var res struct {
		CustomToken string `json:"customToken"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/api/auth/google/code",
		map[string]string{"code": code, "state": state}, &res)
	if err != nil {
		return "", err
	}
	return res.CustomToken, nil
}

// User mirrors the service's account representation.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoURL"`
	Anonymous     bool   `json:"anonymous"`
	Role          string `json:"role"`
}

type authResponse struct {
	CustomToken string `json:"customToken"`
	User        *User  `json:"user"`
}

// Login performs email/password authentication and stores the credential.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var res authResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &res)
	if err != nil {
		return nil, err
	}
	c.Token = res.CustomToken
	return res.User, nil
}

// SignInAnonymously creates an anonymous session and stores the
// credential.
func (c *Client) SignInAnonymously(ctx context.Context) (*User, error) {
	var res authResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/anonymous", nil, &res); err != nil {
		return nil, err
	}
	c.Token = res.CustomToken
	return res.User, nil
}

// Me returns the account behind the stored credential.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
