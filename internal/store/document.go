package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/scholaraid/apiserver/types"
)

const documentColumns = `id, application_id, user_id, name, object_key, content_type, size_bytes, created_at`

// DocumentRepository handles persistence for application documents.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func scanDocument(row rowScanner) (types.Document, error) {
	var d types.Document
	err := row.Scan(&d.ID, &d.ApplicationID, &d.UserID, &d.Name, &d.ObjectKey, &d.ContentType, &d.SizeBytes, &d.CreatedAt)
	return d, err
}

func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]types.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE application_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]types.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (types.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Document{}, translate(err)
	}
	return d, nil
}

func (r *DocumentRepository) Create(ctx context.Context, d types.Document) (types.Document, error) {
	const query = `
		INSERT INTO documents (id, application_id, user_id, name, object_key, content_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + documentColumns
	created, err := scanDocument(r.db.QueryRowContext(ctx, query,
		d.ID,
		d.ApplicationID,
		d.UserID,
		d.Name,
		d.ObjectKey,
		d.ContentType,
		d.SizeBytes,
		time.Now().UTC(),
	))
	if err != nil {
		return types.Document{}, translate(err)
	}
	return created, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
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
