package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/scholaraid/apiserver/types"
)

const notificationColumns = `id, user_id, type, category, title, message, metadata, is_read, delivered_at, created_at`

// NotificationRepository handles persistence for notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func scanNotification(row rowScanner) (types.Notification, error) {
	var n types.Notification
	var metadata []byte
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Category,
		&n.Title,
		&n.Message,
		&metadata,
		&n.IsRead,
		&n.DeliveredAt,
		&n.CreatedAt,
	); err != nil {
		return types.Notification{}, err
	}
	n.Metadata = rawJSON(metadata)
	return n, nil
}

func notificationFilter(filter types.NotificationFilter) *builder {
	b := &builder{}
	b.eq("user_id", filter.UserID)
	if filter.UnreadOnly {
		b.cond("is_read = FALSE")
	}
	if filter.Category != "" {
		b.eq("category", filter.Category)
	}
	return b
}

func (r *NotificationRepository) List(ctx context.Context, filter types.NotificationFilter) ([]types.Notification, error) {
	b := notificationFilter(filter)
	query := `SELECT ` + notificationColumns + ` FROM notifications` + b.where() +
		` ORDER BY created_at DESC, id` + b.page(filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *NotificationRepository) Count(ctx context.Context, filter types.NotificationFilter) (int, error) {
	b := notificationFilter(filter)
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notifications`+b.where(), b.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	const query = `
		INSERT INTO notifications (user_id, type, category, title, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + notificationColumns
	created, err := scanNotification(r.db.QueryRowContext(ctx, query,
		n.UserID,
		n.Type,
		n.Category,
		n.Title,
		n.Message,
		jsonParam(n.Metadata, true),
		time.Now().UTC(),
	))
	if err != nil {
		return types.Notification{}, translate(err)
	}
	return created, nil
}

// HasKind reports whether the user already holds a notification whose
// metadata carries the given kind.
func (r *NotificationRepository) HasKind(ctx context.Context, userID, kind string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND metadata->>'kind' = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, kind).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkRead flags the listed notifications owned by userID as read and
// returns how many matched.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	b := &builder{}
	b.set("is_read", true)
	b.eq("user_id", userID)
	b.in("id", ids)
	return r.exec(ctx, `UPDATE notifications SET `+b.assignments()+b.where(), b.args...)
}

// MarkAllRead flags every unread notification of userID as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	return r.exec(ctx, query, userID)
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET delivered_at = $1 WHERE id = $2 AND delivered_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

func (r *NotificationRepository) Delete(ctx context.Context, userID, id string) error {
	affected, err := r.exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) exec(ctx context.Context, query string, args ...any) (int, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
