package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/scholaraid/apiserver/types"
)

// CredentialRepository persists logins and refresh tokens for the built-in
// identity provider.
type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func scanCredential(row rowScanner) (types.Credential, error) {
	var c types.Credential
	var metadata []byte
	if err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &metadata, &c.CreatedAt); err != nil {
		return types.Credential{}, err
	}
	c.Metadata = rawJSON(metadata)
	return c, nil
}

func (r *CredentialRepository) CreateCredential(ctx context.Context, c types.Credential) error {
	const query = `
		INSERT INTO auth_credentials (id, email, password_hash, metadata, created_at)
		VALUES ($1, LOWER($2), $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Email, c.PasswordHash, jsonParam(c.Metadata, true), time.Now().UTC())
	return translate(err)
}

func (r *CredentialRepository) CredentialByEmail(ctx context.Context, email string) (types.Credential, error) {
	const query = `SELECT id, email, password_hash, metadata, created_at FROM auth_credentials WHERE email = LOWER($1)`
	c, err := scanCredential(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return types.Credential{}, translate(err)
	}
	return c, nil
}

func (r *CredentialRepository) CredentialByID(ctx context.Context, id string) (types.Credential, error) {
	const query = `SELECT id, email, password_hash, metadata, created_at FROM auth_credentials WHERE id = $1`
	c, err := scanCredential(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Credential{}, translate(err)
	}
	return c, nil
}

func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE auth_credentials SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CredentialRepository) SaveRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	const query = `INSERT INTO auth_refresh_tokens (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, tokenHash, userID, expiresAt)
	return translate(err)
}

// ConsumeRefreshToken deletes the token and returns its owner. Expired or
// unknown tokens return ErrNotFound.
func (r *CredentialRepository) ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	const query = `DELETE FROM auth_refresh_tokens WHERE token_hash = $1 AND expires_at > $2 RETURNING user_id`
	var userID string
	if err := r.db.QueryRowContext(ctx, query, tokenHash, now).Scan(&userID); err != nil {
		return "", translate(err)
	}
	return userID, nil
}

func (r *CredentialRepository) RevokeRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_refresh_tokens WHERE user_id = $1`, userID)
	return err
}
