package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/scholaraid/apiserver/types"
)

const applicationSelect = `
	SELECT a.id, a.user_id, a.scholarship_id, a.status, a.essays, a.score, a.admin_notes, a.submitted_at,
		a.created_at, a.updated_at,
		s.id, s.title, s.provider, s.country, s.status, s.application_deadline, s.value, s.image_url,
		p.id, p.first_name, p.last_name, p.email,
		(SELECT COUNT(1) FROM documents d WHERE d.application_id = a.id)
	FROM applications a
	JOIN scholarships s ON s.id = a.scholarship_id
	JOIN profiles p ON p.id = a.user_id`

const applicationColumns = `id, user_id, scholarship_id, status, essays, score, admin_notes, submitted_at, created_at, updated_at`

// ApplicationRepository handles persistence for applications.
type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func scanApplication(row rowScanner, extra ...any) (types.Application, error) {
	var a types.Application
	var essays []byte
	dest := []any{
		&a.ID,
		&a.UserID,
		&a.ScholarshipID,
		&a.Status,
		&essays,
		&a.Score,
		&a.AdminNotes,
		&a.SubmittedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return types.Application{}, err
	}
	a.Essays = []types.Essay{}
	if len(essays) > 0 {
		if err := json.Unmarshal(essays, &a.Essays); err != nil {
			return types.Application{}, err
		}
	}
	return a, nil
}

func scanApplicationDetail(row rowScanner) (types.Application, error) {
	var sch types.ScholarshipSummary
	var user types.UserSummary
	var count types.ApplicationCount
	a, err := scanApplication(row,
		&sch.ID, &sch.Title, &sch.Provider, &sch.Country, &sch.Status, &sch.ApplicationDeadline, &sch.Value, &sch.ImageURL,
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&count.Documents,
	)
	if err != nil {
		return types.Application{}, err
	}
	a.Scholarship = &sch
	a.User = &user
	a.Count = &count
	return a, nil
}

func applicationFilter(filter types.ApplicationFilter) *builder {
	b := &builder{}
	if filter.UserID != "" {
		b.eq("a.user_id", filter.UserID)
	}
	if filter.ScholarshipID != "" {
		b.eq("a.scholarship_id", filter.ScholarshipID)
	}
	if filter.Status != "" {
		b.eq("a.status", filter.Status)
	}
	return b
}

// List returns applications with their scholarship and applicant summaries.
func (r *ApplicationRepository) List(ctx context.Context, filter types.ApplicationFilter) ([]types.Application, error) {
	b := applicationFilter(filter)
	order := " ORDER BY a.updated_at DESC, a.id"
	if filter.NewestFirst {
		order = " ORDER BY a.created_at DESC, a.id"
	}
	query := applicationSelect + b.where() + order + b.page(filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Application, 0)
	for rows.Next() {
		a, err := scanApplicationDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *ApplicationRepository) Count(ctx context.Context, filter types.ApplicationFilter) (int, error) {
	b := applicationFilter(filter)
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM applications a`+b.where(), b.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CountByStatus groups all applications by status. Statuses without rows are
// reported as zero.
func (r *ApplicationRepository) CountByStatus(ctx context.Context) (map[types.ApplicationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM applications GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.ApplicationStatus]int, len(types.AllApplicationStatuses))
	for _, status := range types.AllApplicationStatuses {
		counts[status] = 0
	}
	for rows.Next() {
		var status types.ApplicationStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *ApplicationRepository) Get(ctx context.Context, id string) (types.Application, error) {
	a, err := scanApplicationDetail(r.db.QueryRowContext(ctx, applicationSelect+` WHERE a.id = $1`, id))
	if err != nil {
		return types.Application{}, translate(err)
	}
	return a, nil
}

func (r *ApplicationRepository) FindByUserAndScholarship(ctx context.Context, userID, scholarshipID string) (types.Application, error) {
	const query = `SELECT ` + applicationColumns + ` FROM applications WHERE user_id = $1 AND scholarship_id = $2`
	a, err := scanApplication(r.db.QueryRowContext(ctx, query, userID, scholarshipID))
	if err != nil {
		return types.Application{}, translate(err)
	}
	return a, nil
}

// Create inserts a new application. A second application by the same user
// for the same scholarship returns ErrConflict.
func (r *ApplicationRepository) Create(ctx context.Context, a types.Application) (types.Application, error) {
	now := time.Now().UTC()
	if a.Status == "" {
		a.Status = types.ApplicationDraft
	}
	if a.Essays == nil {
		a.Essays = []types.Essay{}
	}
	essays, err := json.Marshal(a.Essays)
	if err != nil {
		return types.Application{}, err
	}

	const query = `
		INSERT INTO applications (user_id, scholarship_id, status, essays, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + applicationColumns
	created, err := scanApplication(r.db.QueryRowContext(ctx, query, a.UserID, a.ScholarshipID, a.Status, string(essays), now))
	if err != nil {
		return types.Application{}, translate(err)
	}
	return created, nil
}

func (r *ApplicationRepository) Update(ctx context.Context, id string, changes types.ApplicationChanges) (types.Application, error) {
	var b builder
	if changes.Essays != nil {
		essays, err := json.Marshal(*changes.Essays)
		if err != nil {
			return types.Application{}, err
		}
		b.set("essays", string(essays))
	}
	setPtr(&b, "status", changes.Status)
	setPtr(&b, "submitted_at", changes.SubmittedAt)
	b.set("updated_at", time.Now().UTC())

	query := `UPDATE applications SET ` + b.assignments() + ` WHERE id = ` + b.arg(id) + ` RETURNING ` + applicationColumns
	updated, err := scanApplication(r.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return types.Application{}, translate(err)
	}
	return updated, nil
}

func (r *ApplicationRepository) Review(ctx context.Context, id string, review types.ApplicationReview) (types.Application, error) {
	var b builder
	b.set("status", review.Status)
	setOptional(&b, "score", review.Score)
	setOptional(&b, "admin_notes", review.AdminNotes)
	b.set("updated_at", time.Now().UTC())

	query := `UPDATE applications SET ` + b.assignments() + ` WHERE id = ` + b.arg(id) + ` RETURNING ` + applicationColumns
	updated, err := scanApplication(r.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return types.Application{}, translate(err)
	}
	return updated, nil
}

func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
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
