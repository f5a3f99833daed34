// Package client is a Go client for the ScholarAid REST API. It keeps the
// session of the signed-in user and refreshes it once when a request is
// rejected with 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/scholaraid/apiserver/types"
)

// Client talks to one API deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
	query      *form.Encoder

	mu      sync.Mutex
	session Session
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:4000/api.
	BaseURL    string
	HTTPClient *http.Client
}

// Session is the token pair of the signed-in user.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Meta is the pagination block of listing responses.
type Meta struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	UnreadCount *int `json:"unreadCount,omitempty"`
}

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Message string
	Details map[string][]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   string              `json:"error"`
	Details map[string][]string `json:"details"`
	Meta    *Meta               `json:"meta"`
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		query:      form.NewEncoder(),
	}, nil
}

// Session returns the current token pair.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetSession replaces the current token pair.
func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Do sends a JSON request and decodes the envelope's data into out (when
// non-nil). query, when non-nil, is encoded with `form` struct tags.
func (c *Client) Do(ctx context.Context, method, path string, query, body, out any) (*Meta, error) {
	meta, err := c.do(ctx, method, path, query, body, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || isAuthPath(path) {
		return meta, err
	}
	if rerr := c.refresh(ctx); rerr != nil {
		return meta, err
	}
	return c.do(ctx, method, path, query, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query, body, out any) (*Meta, error) {
	target := c.baseURL + path
	if query != nil {
		values, err := c.query.Encode(query)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Session().AccessToken; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Error, Details: env.Details}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Meta, nil
}

func (c *Client) refresh(ctx context.Context) error {
	token := c.Session().RefreshToken
	if token == "" {
		return errors.New("no refresh token")
	}
	var session Session
	if _, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, map[string]string{"refreshToken": token}, &session); err != nil {
		c.SetSession(Session{})
		return err
	}
	c.SetSession(session)
	return nil
}

func isAuthPath(path string) bool {
	switch path {
	case "/auth/signin", "/auth/signup", "/auth/refresh":
		return true
	}
	return false
}

// User is the account projection returned by the auth endpoints.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Role                types.Role `json:"role"`
	OnboardingCompleted *bool      `json:"onboardingCompleted,omitempty"`
}

// SignUpRequest registers an account.
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	_, err := c.Do(ctx, http.MethodPost, "/auth/signup", nil, req, &out)
	return out.User, err
}

// SignIn authenticates and stores the returned session. The user is nil
// when the account has no profile yet.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	var out struct {
		Session Session `json:"session"`
		User    *User   `json:"user"`
	}
	_, err := c.Do(ctx, http.MethodPost, "/auth/signin", nil, map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.SetSession(out.Session)
	return out.User, nil
}

// SignOut ends the session. The local session is cleared even when the
// server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	_, err := c.Do(ctx, http.MethodPost, "/auth/signout", nil, nil, nil)
	c.SetSession(Session{})
	return err
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (types.Profile, error) {
	var out types.Profile
	_, err := c.Do(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out, err
}

// ScholarshipQuery filters the public catalogue. Zero values are omitted.
type ScholarshipQuery struct {
	Page         int                     `form:"page,omitempty"`
	Limit        int                     `form:"limit,omitempty"`
	Search       string                  `form:"search,omitempty"`
	Status       types.ScholarshipStatus `form:"status,omitempty"`
	Country      string                  `form:"country,omitempty"`
	Level        string                  `form:"level,omitempty"`
	Type         types.ScholarshipType   `form:"type,omitempty"`
	FieldOfStudy string                  `form:"fieldOfStudy,omitempty"`
	Featured     *bool                   `form:"featured,omitempty"`
	SortBy       types.ScholarshipSort   `form:"sortBy,omitempty"`
	SortOrder    string                  `form:"sortOrder,omitempty"`
}

func (c *Client) ListScholarships(ctx context.Context, q ScholarshipQuery) ([]types.Scholarship, *Meta, error) {
	var out []types.Scholarship
	meta, err := c.Do(ctx, http.MethodGet, "/scholarships", q, nil, &out)
	return out, meta, err
}

// Apply starts an application for a scholarship.
func (c *Client) Apply(ctx context.Context, scholarshipID string) (types.Application, error) {
	var out types.Application
	_, err := c.Do(ctx, http.MethodPost, "/applications", nil, map[string]string{"scholarshipId": scholarshipID}, &out)
	return out, err
}

// NotificationQuery filters the caller's notifications.
type NotificationQuery struct {
	Page       int                        `form:"page,omitempty"`
	Limit      int                        `form:"limit,omitempty"`
	UnreadOnly bool                       `form:"unreadOnly,omitempty"`
	Category   types.NotificationCategory `form:"category,omitempty"`
}

func (c *Client) ListNotifications(ctx context.Context, q NotificationQuery) ([]types.Notification, *Meta, error) {
	var out []types.Notification
	meta, err := c.Do(ctx, http.MethodGet, "/notifications", q, nil, &out)
	return out, meta, err
}

// MarkAllRead marks every notification read and reports how many changed.
func (c *Client) MarkAllRead(ctx context.Context) (int, error) {
	var out struct {
		MarkedRead int `json:"markedRead"`
	}
	_, err := c.Do(ctx, http.MethodPatch, "/notifications/read-all", nil, nil, &out)
	return out.MarkedRead, err
}
