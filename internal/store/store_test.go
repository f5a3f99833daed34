package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/scholaraid/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, translate(&pq.Error{Code: "23505"}), ErrConflict)

	other := &pq.Error{Code: "23503"}
	assert.Same(t, other, translate(other))
}

func TestBuilder(t *testing.T) {
	b := &builder{}
	b.eq("status", "OPEN")
	b.ilike("50%_off", "title", "provider")
	page := b.page(40, 20)

	assert.Equal(t, " WHERE status = $1 AND (title ILIKE $2 OR provider ILIKE $2)", b.where())
	assert.Equal(t, " OFFSET $3 LIMIT $4", page)
	assert.Equal(t, []any{"OPEN", `%50\%\_off%`, 40, 20}, b.args)

	empty := &builder{}
	assert.Empty(t, empty.where())
	assert.Equal(t, " OFFSET $1 LIMIT $2", empty.page(-5, 0))
	assert.Equal(t, []any{0, 20}, empty.args)
}

func TestNotificationList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 AND is_read = FALSE AND category = $2 ORDER BY created_at DESC, id OFFSET $3 LIMIT $4`,
	)).
		WithArgs("user-1", "SYSTEM", 0, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "category", "title", "message", "metadata", "is_read", "delivered_at", "created_at"}).
			AddRow("n-1", "user-1", "SUCCESS", "SYSTEM", "Welcome", "Hi", []byte(`{"kind":"welcome"}`), false, nil, now))

	items, err := repo.List(context.Background(), types.NotificationFilter{
		UserID:     "user-1",
		UnreadOnly: true,
		Category:   types.CategorySystem,
		Limit:      20,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.NotificationSuccess, items[0].Type)
	assert.JSONEq(t, `{"kind":"welcome"}`, string(items[0].Metadata))
	assert.Nil(t, items[0].DeliveredAt)
}

func TestNotificationMarkRead(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET is_read = $1 WHERE user_id = $2 AND id = ANY($3)`)).
		WithArgs(true, "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`)).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.MarkRead(context.Background(), "user-1", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.MarkAllRead(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotificationDeleteNotOwned(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM notifications WHERE id = $1 AND user_id = $2`)).
		WithArgs("n-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "user-2", "n-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationMarkDelivered(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db)
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET delivered_at = $1 WHERE id = $2 AND delivered_at IS NULL`)).
		WithArgs(at, "n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDelivered(context.Background(), "n-1", at))
}

func TestCredentialConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCredentialRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO auth_credentials`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.CreateCredential(context.Background(), types.Credential{ID: "c-1", Email: "a@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCredentialByEmailMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCredentialRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM auth_credentials WHERE email = LOWER($1)`)).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.CredentialByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialUpdatePasswordUnknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCredentialRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE auth_credentials SET password_hash = $1 WHERE id = $2`)).
		WithArgs("hash", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePasswordHash(context.Background(), "missing", "hash")
	assert.True(t, errors.Is(err, ErrNotFound))
}
