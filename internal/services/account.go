package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/scholaraid/apiserver/internal/identity"
	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"go.uber.org/zap"
)

const welcomeKind = "welcome"

// AccountProfiles is the profile access needed by sign-up and sign-in.
type AccountProfiles interface {
	Get(ctx context.Context, id string) (types.Profile, error)
	FindByAuthID(ctx context.Context, authID string) (types.Profile, error)
	UpsertByAuthID(ctx context.Context, profile types.Profile) (types.Profile, error)
}

// AccountService bridges the identity provider and application profiles.
type AccountService struct {
	provider      identity.Provider
	profiles      AccountProfiles
	notifications *NotificationService
	logger        *zap.Logger
}

func NewAccountService(provider identity.Provider, profiles AccountProfiles, notifications *NotificationService, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{provider: provider, profiles: profiles, notifications: notifications, logger: logger}
}

// SignUp is a registration request.
type SignUp struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignUp creates a confirmed provider account, its profile, and a single
// welcome notification. Provider rejections surface as 400 with the
// provider's message.
func (s *AccountService) SignUp(ctx context.Context, req SignUp) (types.Profile, error) {
	user, err := s.provider.CreateUser(ctx, req.Email, req.Password, map[string]any{
		"firstName": req.FirstName,
		"lastName":  req.LastName,
	})
	if err != nil {
		var perr *identity.Error
		if errors.As(err, &perr) {
			return types.Profile{}, badRequest(perr.Message)
		}
		return types.Profile{}, err
	}

	email := user.Email
	if email == "" {
		email = req.Email
	}
	profile, err := s.profiles.UpsertByAuthID(ctx, types.Profile{
		AuthID:    user.ID,
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return types.Profile{}, err
	}

	err = s.notifications.NotifyOnce(ctx, welcomeKind, types.Notification{
		UserID:   profile.ID,
		Type:     types.NotificationSuccess,
		Category: types.CategorySystem,
		Title:    "Welcome to ScholarAid",
		Message:  "Your account is ready. Complete your profile and start exploring scholarships curated for your goals.",
	})
	if err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

// SignIn exchanges a password for a session. The profile is nil when the
// account has none yet.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (identity.Session, *types.Profile, error) {
	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return identity.Session{}, nil, ErrInvalidLogin
		}
		return identity.Session{}, nil, err
	}

	profile, err := s.profiles.FindByAuthID(ctx, session.User.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session, nil, nil
		}
		return identity.Session{}, nil, err
	}
	return session, &profile, nil
}

func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (identity.Session, error) {
	session, err := s.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return identity.Session{}, ErrInvalidRefreshToken
		}
		return identity.Session{}, err
	}
	if session.AccessToken == "" {
		return identity.Session{}, ErrInvalidRefreshToken
	}
	return session, nil
}

// SignOut revokes the session at the provider. Clients discard their tokens
// regardless, so provider failures are only logged.
func (s *AccountService) SignOut(ctx context.Context, accessToken string) {
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("provider sign-out failed", zap.Error(err))
	}
}

// ForgotPassword starts password recovery. Its outcome is never reported to
// the caller so that registered addresses cannot be probed.
func (s *AccountService) ForgotPassword(ctx context.Context, email, redirectTo string) {
	if err := s.provider.ResetPasswordForEmail(ctx, email, redirectTo); err != nil {
		s.logger.Warn("password recovery request failed", zap.Error(err))
	}
}

// ResetPassword sets a new password for the holder of token.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	if err := s.provider.UpdatePassword(ctx, token, password); err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return ErrInvalidResetToken
		}
		var perr *identity.Error
		if errors.As(err, &perr) && perr.StatusCode < http.StatusInternalServerError {
			return badRequest(perr.Message)
		}
		return err
	}
	return nil
}

// Me returns the caller's profile.
func (s *AccountService) Me(ctx context.Context, profileID string) (types.Profile, error) {
	profile, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Profile{}, ErrProfileNotFound
		}
		return types.Profile{}, err
	}
	return profile, nil
}
