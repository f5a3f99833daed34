package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/services"
	"github.com/scholaraid/apiserver/types"
)

type signUpRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
}

func (signUpRequest) FieldMessages() map[string]string {
	return map[string]string{
		"password.min":      "Password must be at least 8 characters",
		"password.required": "Password must be at least 8 characters",
	}
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirectTo" validate:"omitempty,url"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (resetPasswordRequest) FieldMessages() map[string]string {
	return signUpRequest{}.FieldMessages()
}

// AccountUser is the profile projection returned by the auth endpoints.
type AccountUser struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	FirstName           string     `json:"firstName"`
	LastName            string     `json:"lastName"`
	Role                types.Role `json:"role"`
	OnboardingCompleted *bool      `json:"onboardingCompleted,omitempty"`
}

// SessionTokens is the token pair handed to clients.
type SessionTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// SignUpResponse is the data of a successful signup.
type SignUpResponse struct {
	User AccountUser `json:"user"`
}

// SignInResponse is the data of a successful signin. User is null when the
// account has no profile yet.
type SignInResponse struct {
	Session SessionTokens `json:"session"`
	User    *AccountUser  `json:"user"`
}

// AuthHandler serves account endpoints backed by the identity provider.
type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, b *pipeline.Builder, accounts *services.AccountService) {
	h := NewAuthHandler(accounts)
	b.Mount(r, []pipeline.Route{
		{Method: http.MethodPost, Pattern: "/signup", Body: pipeline.SchemaOf[signUpRequest](), Handle: h.SignUp},
		{Method: http.MethodPost, Pattern: "/signin", Body: pipeline.SchemaOf[signInRequest](), Handle: h.SignIn},
		{Method: http.MethodPost, Pattern: "/refresh", Body: pipeline.SchemaOf[refreshRequest](), Handle: h.Refresh},
		{Method: http.MethodPost, Pattern: "/signout", Auth: pipeline.RequiredAuth, Handle: h.SignOut},
		{Method: http.MethodGet, Pattern: "/me", Auth: pipeline.RequiredAuth, Handle: h.Me},
		{Method: http.MethodPost, Pattern: "/forgot-password", Body: pipeline.SchemaOf[forgotPasswordRequest](), Handle: h.ForgotPassword},
		// Recovery tokens are not valid access tokens, so the token is
		// checked by the provider rather than the auth stage.
		{Method: http.MethodPost, Pattern: "/reset-password", Body: pipeline.SchemaOf[resetPasswordRequest](), Handle: h.ResetPassword},
	})
}

func (h *AuthHandler) SignUp(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[signUpRequest](c)

	profile, err := h.accounts.SignUp(ctx, services.SignUp{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Created(SignUpResponse{User: accountUser(profile, false)}), nil
}

func (h *AuthHandler) SignIn(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[signInRequest](c)

	session, profile, err := h.accounts.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return pipeline.Result{}, err
	}

	resp := SignInResponse{Session: sessionTokens(session.AccessToken, session.RefreshToken, session.ExpiresAt)}
	if profile != nil {
		user := accountUser(*profile, true)
		resp.User = &user
	}
	return pipeline.OK(resp), nil
}

func (h *AuthHandler) Refresh(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[refreshRequest](c)
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		return pipeline.Result{}, pipeline.BadRequest("Refresh token is required")
	}

	session, err := h.accounts.Refresh(ctx, token)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(sessionTokens(session.AccessToken, session.RefreshToken, session.ExpiresAt)), nil
}

func (h *AuthHandler) SignOut(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	h.accounts.SignOut(ctx, c.Identity.Token)
	return pipeline.OK(pipeline.Message{Message: "Signed out successfully"}), nil
}

func (h *AuthHandler) Me(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	profile, err := h.accounts.Me(ctx, c.Identity.UserID)
	if err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(profile), nil
}

// ForgotPassword always succeeds so registered addresses cannot be probed.
func (h *AuthHandler) ForgotPassword(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	req := pipeline.Body[forgotPasswordRequest](c)
	h.accounts.ForgotPassword(ctx, req.Email, req.RedirectTo)
	return pipeline.OK(pipeline.Message{Message: "If an account exists for this email, a reset link has been sent"}), nil
}

func (h *AuthHandler) ResetPassword(ctx context.Context, c pipeline.Call) (pipeline.Result, error) {
	token, err := pipeline.RequireBearer(c.Request)
	if err != nil {
		return pipeline.Result{}, err
	}
	req := pipeline.Body[resetPasswordRequest](c)
	if err := h.accounts.ResetPassword(ctx, token, req.Password); err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.OK(pipeline.Message{Message: "Password updated successfully"}), nil
}

func accountUser(p types.Profile, withOnboarding bool) AccountUser {
	user := AccountUser{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
	}
	if withOnboarding {
		done := p.OnboardingCompleted
		user.OnboardingCompleted = &done
	}
	return user
}

func sessionTokens(access, refresh string, expiresAt int64) SessionTokens {
	return SessionTokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}
}
