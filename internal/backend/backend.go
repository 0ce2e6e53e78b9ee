// Package backend is the HTTP client for the code review service API.
//
// Every non-2xx response goes through decodeError, which understands the
// {message}, {detail} and {error} body shapes the service produces, and every
// transport failure is reported as an errs.KindConnectivity error.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
)

// DefaultBaseURL is where the service listens when run locally.
const DefaultBaseURL = "http://127.0.0.1:8000"

// DefaultTimeout bounds review/rewrite calls, which wait on an LLM.
const DefaultTimeout = 120 * time.Second

// Client calls the code review service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for baseURL. A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// TokenResponse is the success body of the login endpoints.
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        models.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// rewriteResponse accepts the code under either key the service has used.
type rewriteResponse struct {
	RewrittenCode string   `json:"rewritten_code"`
	Rewrite       string   `json:"rewrite"`
	Improvements  []string `json:"improvements"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup creates an account. The response body is ignored.
func (c *Client) Signup(ctx context.Context, name, email, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", "", signupRequest{Name: name, Email: email, Password: password}, nil)
}

// Google runs the service's Google sign-in flow.
func (c *Client) Google(ctx context.Context) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/google", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Review submits code for review.
func (c *Client) Review(ctx context.Context, token string, req models.CodeRequest) (*models.ReviewResult, error) {
	var out models.ReviewResult
	if err := c.do(ctx, http.MethodPost, "/review", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rewrite submits code to be corrected.
func (c *Client) Rewrite(ctx context.Context, token string, req models.CodeRequest) (*models.RewriteResult, error) {
	var raw rewriteResponse
	if err := c.do(ctx, http.MethodPost, "/rewrite", token, req, &raw); err != nil {
		return nil, err
	}
	code := raw.RewrittenCode
	if code == "" {
		code = raw.Rewrite
	}
	return &models.RewriteResult{RewrittenCode: code, Improvements: raw.Improvements}, nil
}

// Health checks that the service is reachable and healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

// do sends one request. body and out may be nil. A non-empty token is sent
// as a bearer credential.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	slog.Debug("backend request", "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		return errs.Connectivity("Network error. Please try again.", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Connectivity("Network error while reading the response.", err)
	}
	slog.Debug("backend response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.Server(resp.StatusCode, fmt.Sprintf("Unexpected response from server: %v", err))
	}
	return nil
}

// errorBody covers every failure shape the service emits.
type errorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
}

// decodeError converts a non-2xx response into a KindServer error. Detail
// holds the server's own message; Message falls back to the status line.
// Callers decide whether the status means an auth failure.
func decodeError(status int, body []byte) *errs.Error {
	detail := ServerMessage(body)
	msg := detail
	if msg == "" {
		msg = fmt.Sprintf("HTTP error! status: %d", status)
	}
	e := errs.Server(status, msg)
	e.Detail = detail
	return e
}

// ServerMessage extracts the first non-empty of message, detail, error.
// A structured detail (validation error list) yields its first "msg".
func ServerMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	if d := detailMessage(eb.Detail); d != "" {
		return d
	}
	return eb.Error
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		for _, it := range items {
			if it.Msg != "" {
				return it.Msg
			}
		}
	}
	return ""
}
