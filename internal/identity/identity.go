// Package identity talks to the external identity provider that owns
// credentials and issues bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when an email/password pair or a
	// refresh token is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when an access token is rejected.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// User is the provider-side account.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is the token pair returned after a successful login or refresh.
// ExpiresAt is a unix timestamp in seconds.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	User         User
}

// Error is a request the provider rejected with a client-facing message.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity provider error (%d): %s", e.StatusCode, e.Message)
}

// Provider is the subset of identity operations the API relies on.
type Provider interface {
	// CreateUser registers a pre-confirmed account.
	CreateUser(ctx context.Context, email, password string, metadata map[string]any) (User, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (Session, error)
	// GetUser resolves an access token. Rejected tokens return ErrInvalidToken.
	GetUser(ctx context.Context, accessToken string) (User, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
}
