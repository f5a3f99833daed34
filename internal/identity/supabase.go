package identity

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
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// SupabaseConfig configures the Supabase Auth (GoTrue) client.
type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	HTTPClient     *http.Client
}

// Supabase implements Provider against the Supabase Auth REST API.
type Supabase struct {
	authURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// NewSupabase constructs a Supabase Auth client.
func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("supabase url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid supabase url: %w", err)
	}
	if cfg.AnonKey == "" || cfg.ServiceRoleKey == "" {
		return nil, errors.New("supabase anon key and service role key are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Supabase{
		authURL:    baseURL + "/auth/v1",
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceRoleKey,
		httpClient: httpClient,
	}, nil
}

type supabaseSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

func (s supabaseSession) toSession() Session {
	expiresAt := s.ExpiresAt
	if expiresAt == 0 && s.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         s.User,
	}
}

// CreateUser uses the admin API so the account is confirmed immediately.
func (s *Supabase) CreateUser(ctx context.Context, email, password string, metadata map[string]any) (User, error) {
	payload := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
		"user_metadata": metadata,
	}

	var user User
	if _, err := s.do(ctx, http.MethodPost, "/admin/users", payload, s.serviceKey, s.serviceKey, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Supabase) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}

	var session supabaseSession
	if _, err := s.do(ctx, http.MethodPost, "/token?grant_type=password", payload, s.anonKey, s.anonKey, &session); err != nil {
		return Session{}, asCredentialError(err)
	}
	return session.toSession(), nil
}

func (s *Supabase) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	var session supabaseSession
	if _, err := s.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", payload, s.anonKey, s.anonKey, &session); err != nil {
		return Session{}, asCredentialError(err)
	}
	return session.toSession(), nil
}

func (s *Supabase) GetUser(ctx context.Context, accessToken string) (User, error) {
	var user User
	if _, err := s.do(ctx, http.MethodGet, "/user", nil, s.anonKey, accessToken, &user); err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.StatusCode < http.StatusInternalServerError {
			return User{}, fmt.Errorf("%w: %s", ErrInvalidToken, perr.Message)
		}
		return User{}, err
	}
	if strings.TrimSpace(user.ID) == "" {
		return User{}, ErrInvalidToken
	}
	return user, nil
}

func (s *Supabase) SignOut(ctx context.Context, accessToken string) error {
	_, err := s.do(ctx, http.MethodPost, "/logout", nil, s.anonKey, accessToken, nil)
	return err
}

func (s *Supabase) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	_, err := s.do(ctx, http.MethodPost, path, map[string]string{"email": email}, s.anonKey, s.anonKey, nil)
	return err
}

func (s *Supabase) UpdatePassword(ctx context.Context, accessToken, password string) error {
	_, err := s.do(ctx, http.MethodPut, "/user", map[string]string{"password": password}, s.anonKey, accessToken, nil)
	return err
}

// do sends a JSON request. Non-2xx responses are returned as *Error.
func (s *Supabase) do(ctx context.Context, method, path string, payload any, apiKey, bearer string, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.authURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, parseError(respBody, resp.StatusCode)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func parseError(body []byte, statusCode int) error {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	message := firstNonEmpty(payload.Msg, payload.ErrorDescription, payload.Message, payload.Error)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &Error{StatusCode: statusCode, Message: message}
}

func asCredentialError(err error) error {
	var perr *Error
	if errors.As(err, &perr) && perr.StatusCode < http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, perr.Message)
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
