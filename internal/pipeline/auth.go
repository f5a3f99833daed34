package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/scholaraid/apiserver/internal/identity"
	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
)

const (
	msgMissingHeader = "Missing or malformed Authorization header"
	msgInvalidToken  = "Invalid or expired token"
	msgSuspended     = "Account is suspended"
)

// ProfileLookup resolves the application profile of a provider subject.
type ProfileLookup interface {
	FindByAuthID(ctx context.Context, authID string) (types.Profile, error)
}

// Authenticator resolves bearer tokens into identities.
type Authenticator struct {
	provider identity.Provider
	profiles ProfileLookup
}

func NewAuthenticator(provider identity.Provider, profiles ProfileLookup) *Authenticator {
	return &Authenticator{provider: provider, profiles: profiles}
}

// Require rejects calls without a valid bearer token.
func (a *Authenticator) Require(ctx context.Context, c Call) (Call, error) {
	token, err := RequireBearer(c.Request)
	if err != nil {
		return c, err
	}
	id, err := a.resolve(ctx, token)
	if err != nil {
		return c, err
	}
	c.Identity = id
	return c, nil
}

// Optional attaches an identity when a valid token is present. It never
// fails: any problem resolving the token leaves the call anonymous.
func (a *Authenticator) Optional(ctx context.Context, c Call) (Call, error) {
	token, ok := bearerToken(c.Request)
	if !ok {
		return c, nil
	}
	if id, err := a.resolve(ctx, token); err == nil {
		c.Identity = id
	}
	return c, nil
}

func (a *Authenticator) resolve(ctx context.Context, token string) (*Identity, error) {
	user, err := a.provider.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return nil, Unauthorized(msgInvalidToken)
		}
		return nil, err
	}

	id := &Identity{
		UserID: user.ID,
		AuthID: user.ID,
		Email:  user.Email,
		Role:   types.RoleStudent,
		Token:  token,
	}

	profile, err := a.profiles.FindByAuthID(ctx, user.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return id, nil
	case err != nil:
		return nil, err
	}
	if profile.Status == types.ProfileSuspended {
		return nil, Fail(http.StatusForbidden, msgSuspended)
	}
	id.UserID = profile.ID
	id.Role = profile.Role
	if profile.Email != "" {
		id.Email = profile.Email
	}
	return id, nil
}

// RequireBearer returns the bearer token of r, or a 401 halt when the
// Authorization header is missing or malformed.
func RequireBearer(r *http.Request) (string, error) {
	token, ok := bearerToken(r)
	if !ok {
		return "", Unauthorized(msgMissingHeader)
	}
	return token, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	if token == "" {
		return "", false
	}
	return token, true
}
