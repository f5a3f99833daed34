package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTTL   = time.Hour
	defaultRefreshTTL  = 30 * 24 * time.Hour
	defaultRecoveryTTL = time.Hour
	localIssuer        = "scholaraid"
	purposeAccess      = "access"
	purposeRecovery    = "recovery"
)

// CredentialStore persists logins for the Local provider.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c types.Credential) error
	CredentialByEmail(ctx context.Context, email string) (types.Credential, error)
	CredentialByID(ctx context.Context, id string) (types.Credential, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SaveRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
	RevokeRefreshTokens(ctx context.Context, userID string) error
}

// Local is a self-contained Provider issuing HS256 access tokens over
// bcrypt-hashed credentials. It backs development and test deployments that
// have no Supabase project.
type Local struct {
	store      CredentialStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

type localClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// NewLocal constructs a Local provider.
func NewLocal(credentials CredentialStore, secret string, logger *zap.Logger) (*Local, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{
		store:      credentials,
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (l *Local) CreateUser(ctx context.Context, email, password string, metadata map[string]any) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	rawMeta, err := json.Marshal(metadata)
	if err != nil {
		return User{}, err
	}

	cred := types.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     rawMeta,
	}
	if err := l.store.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return User{}, &Error{StatusCode: 422, Message: "A user with this email address has already been registered"}
		}
		return User{}, err
	}
	return User{ID: cred.ID, Email: email, Metadata: metadata}, nil
}

func (l *Local) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	cred, err := l.store.CredentialByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return l.issueSession(ctx, cred)
}

func (l *Local) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	userID, err := l.store.ConsumeRefreshToken(ctx, hashToken(refreshToken), l.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	cred, err := l.store.CredentialByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	return l.issueSession(ctx, cred)
}

func (l *Local) GetUser(ctx context.Context, accessToken string) (User, error) {
	claims, err := l.parse(accessToken, purposeAccess)
	if err != nil {
		return User{}, err
	}
	cred, err := l.store.CredentialByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	return credentialUser(cred), nil
}

// SignOut revokes every refresh token of the token's subject.
func (l *Local) SignOut(ctx context.Context, accessToken string) error {
	claims, err := l.parse(accessToken, purposeAccess)
	if err != nil {
		return err
	}
	return l.store.RevokeRefreshTokens(ctx, claims.Subject)
}

// ResetPasswordForEmail issues a recovery token. There is no mail transport,
// so the token is written to the log.
func (l *Local) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	cred, err := l.store.CredentialByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := l.sign(cred, purposeRecovery, defaultRecoveryTTL)
	if err != nil {
		return err
	}
	l.logger.Info("password recovery issued",
		zap.String("user_id", cred.ID),
		zap.String("redirect_to", redirectTo),
		zap.String("recovery_token", token),
	)
	return nil
}

// UpdatePassword accepts either an access token or a recovery token.
func (l *Local) UpdatePassword(ctx context.Context, accessToken, password string) error {
	claims, err := l.parse(accessToken, "")
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := l.store.UpdatePasswordHash(ctx, claims.Subject, string(hash)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	return l.store.RevokeRefreshTokens(ctx, claims.Subject)
}

func (l *Local) issueSession(ctx context.Context, cred types.Credential) (Session, error) {
	access, err := l.sign(cred, purposeAccess, l.accessTTL)
	if err != nil {
		return Session{}, err
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return Session{}, err
	}
	if err := l.store.SaveRefreshToken(ctx, hashToken(refresh), cred.ID, l.now().Add(l.refreshTTL)); err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    l.now().Add(l.accessTTL).Unix(),
		User:         credentialUser(cred),
	}, nil
}

func (l *Local) sign(cred types.Credential, purpose string, ttl time.Duration) (string, error) {
	now := l.now()
	claims := localClaims{
		Email:   cred.Email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
}

// parse validates a token. An empty purpose accepts any purpose.
func (l *Local) parse(tokenString, purpose string) (localClaims, error) {
	var claims localClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return l.secret, nil
	},
		jwt.WithIssuer(localIssuer),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil || !token.Valid {
		return localClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return localClaims{}, ErrInvalidToken
	}
	if purpose != "" && claims.Purpose != purpose {
		return localClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func credentialUser(cred types.Credential) User {
	user := User{ID: cred.ID, Email: cred.Email}
	if len(cred.Metadata) > 0 {
		_ = json.Unmarshal(cred.Metadata, &user.Metadata)
	}
	return user
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
