package memory

import (
	"context"
	"strings"
	"time"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
)

type Credentials struct {
	db *DB
}

func (r *Credentials) CreateCredential(ctx context.Context, c types.Credential) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c.Email = strings.ToLower(c.Email)
	for _, existing := range r.db.credentials {
		if existing.Email == c.Email {
			return store.ErrConflict
		}
	}
	c.CreatedAt = r.db.tick()
	r.db.credentials[c.ID] = c
	return nil
}

func (r *Credentials) CredentialByEmail(ctx context.Context, email string) (types.Credential, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	email = strings.ToLower(email)
	for _, c := range r.db.credentials {
		if c.Email == email {
			return c, nil
		}
	}
	return types.Credential{}, store.ErrNotFound
}

func (r *Credentials) CredentialByID(ctx context.Context, id string) (types.Credential, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.credentials[id]
	if !ok {
		return types.Credential{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Credentials) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.credentials[id]
	if !ok {
		return store.ErrNotFound
	}
	c.PasswordHash = hash
	r.db.credentials[id] = c
	return nil
}

func (r *Credentials) SaveRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, exists := r.db.refreshTokens[tokenHash]; exists {
		return store.ErrConflict
	}
	r.db.refreshTokens[tokenHash] = refreshToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (r *Credentials) ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	tok, ok := r.db.refreshTokens[tokenHash]
	if !ok {
		return "", store.ErrNotFound
	}
	delete(r.db.refreshTokens, tokenHash)
	if !tok.expiresAt.After(now) {
		return "", store.ErrNotFound
	}
	return tok.userID, nil
}

func (r *Credentials) RevokeRefreshTokens(ctx context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for hash, tok := range r.db.refreshTokens {
		if tok.userID == userID {
			delete(r.db.refreshTokens, hash)
		}
	}
	return nil
}
