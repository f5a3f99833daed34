package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/scholaraid/apiserver/types"
)

const scholarshipColumns = `s.id, s.title, s.provider, s.country, s.image_url, s.level, s.status, s.duration,
	s.tuition_waiver, s.monthly_stipend, s.application_fee, s.flight_ticket, s.max_age, s.open_date,
	s.application_deadline, s.description, s.value, s.field_of_study, s.type, s.eligibility, s.benefits,
	s.requirements, s.timeline, s.featured, s.created_by_id, s.created_at, s.updated_at`

var scholarshipSortColumns = map[types.ScholarshipSort]string{
	types.SortByApplicationDeadline: "s.application_deadline",
	types.SortByDeadline:            "s.application_deadline",
	types.SortByCreatedAt:           "s.created_at",
	types.SortByTitle:               "s.title",
}

// ScholarshipRepository handles persistence for scholarships.
type ScholarshipRepository struct {
	db *sql.DB
}

func NewScholarshipRepository(db *sql.DB) *ScholarshipRepository {
	return &ScholarshipRepository{db: db}
}

func scanScholarship(row rowScanner, extra ...any) (types.Scholarship, error) {
	var s types.Scholarship
	var eligibility, benefits, requirements, timeline []byte
	dest := []any{
		&s.ID,
		&s.Title,
		&s.Provider,
		&s.Country,
		&s.ImageURL,
		&s.Level,
		&s.Status,
		&s.Duration,
		&s.TuitionWaiver,
		&s.MonthlyStipend,
		&s.ApplicationFee,
		&s.FlightTicket,
		&s.MaxAge,
		&s.OpenDate,
		&s.ApplicationDeadline,
		&s.Description,
		&s.Value,
		&s.FieldOfStudy,
		&s.Type,
		&eligibility,
		&benefits,
		&requirements,
		&timeline,
		&s.Featured,
		&s.CreatedByID,
		&s.CreatedAt,
		&s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return types.Scholarship{}, err
	}
	s.Eligibility = rawJSON(eligibility)
	s.Benefits = rawJSON(benefits)
	s.Requirements = rawJSON(requirements)
	s.Timeline = rawJSON(timeline)
	return s, nil
}

func rawJSON(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

func scholarshipFilter(filter types.ScholarshipFilter) *builder {
	b := &builder{}
	if filter.Search != "" {
		b.ilike(filter.Search, "s.title", "s.provider", "s.description")
	}
	if filter.Status != "" {
		b.eq("s.status", filter.Status)
	}
	if filter.ExcludeDrafts {
		b.neq("s.status", types.ScholarshipDraft)
	}
	if filter.Country != "" {
		b.ilike(filter.Country, "s.country")
	}
	if filter.Level != "" {
		b.ilike(filter.Level, "s.level")
	}
	if filter.FieldOfStudy != "" {
		b.ilike(filter.FieldOfStudy, "s.field_of_study")
	}
	if filter.Type != "" {
		b.eq("s.type", filter.Type)
	}
	if filter.Featured != nil {
		b.eq("s.featured", *filter.Featured)
	}
	return b
}

func (r *ScholarshipRepository) List(ctx context.Context, filter types.ScholarshipFilter) ([]types.Scholarship, error) {
	b := scholarshipFilter(filter)

	sortCol, ok := scholarshipSortColumns[filter.SortBy]
	if !ok {
		sortCol = "s.created_at"
	}
	direction := " ASC NULLS LAST"
	if filter.Descending {
		direction = " DESC NULLS LAST"
	}

	query := `
		SELECT ` + scholarshipColumns + `,
			(SELECT COUNT(1) FROM applications a WHERE a.scholarship_id = s.id)
		FROM scholarships s` + b.where() + `
		ORDER BY ` + sortCol + direction + `, s.id` + b.page(filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Scholarship, 0)
	for rows.Next() {
		var count types.ScholarshipCount
		s, err := scanScholarship(rows, &count.Applications)
		if err != nil {
			return nil, err
		}
		s.Count = &count
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *ScholarshipRepository) Count(ctx context.Context, filter types.ScholarshipFilter) (int, error) {
	b := scholarshipFilter(filter)
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM scholarships s`+b.where(), b.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ScholarshipRepository) Get(ctx context.Context, id string) (types.Scholarship, error) {
	const query = `
		SELECT ` + scholarshipColumns + `,
			(SELECT COUNT(1) FROM applications a WHERE a.scholarship_id = s.id)
		FROM scholarships s
		WHERE s.id = $1`
	var count types.ScholarshipCount
	s, err := scanScholarship(r.db.QueryRowContext(ctx, query, id), &count.Applications)
	if err != nil {
		return types.Scholarship{}, translate(err)
	}
	s.Count = &count
	return s, nil
}

func (r *ScholarshipRepository) Create(ctx context.Context, s types.Scholarship) (types.Scholarship, error) {
	now := time.Now().UTC()
	if s.Status == "" {
		s.Status = types.ScholarshipDraft
	}
	if s.Type == "" {
		s.Type = types.ScholarshipGovernment
	}

	const query = `
		WITH s AS (
			INSERT INTO scholarships (title, provider, country, image_url, level, status, duration, tuition_waiver,
				monthly_stipend, application_fee, flight_ticket, max_age, open_date, application_deadline,
				description, value, field_of_study, type, eligibility, benefits, requirements, timeline,
				featured, created_by_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
				$19, $20, $21, $22, $23, $24, $25, $25)
			RETURNING *
		)
		SELECT ` + scholarshipColumns + ` FROM s`
	created, err := scanScholarship(r.db.QueryRowContext(ctx, query,
		s.Title,
		s.Provider,
		s.Country,
		s.ImageURL,
		s.Level,
		s.Status,
		s.Duration,
		s.TuitionWaiver,
		s.MonthlyStipend,
		s.ApplicationFee,
		s.FlightTicket,
		s.MaxAge,
		s.OpenDate,
		s.ApplicationDeadline,
		s.Description,
		s.Value,
		s.FieldOfStudy,
		s.Type,
		jsonParam(s.Eligibility, true),
		jsonParam(s.Benefits, true),
		jsonParam(s.Requirements, true),
		jsonParam(s.Timeline, true),
		s.Featured,
		s.CreatedByID,
		now,
	))
	if err != nil {
		return types.Scholarship{}, translate(err)
	}
	created.Count = &types.ScholarshipCount{}
	return created, nil
}

func (r *ScholarshipRepository) Update(ctx context.Context, id string, changes types.ScholarshipChanges) (types.Scholarship, error) {
	var b builder
	setPtr(&b, "title", changes.Title)
	setPtr(&b, "provider", changes.Provider)
	setPtr(&b, "country", changes.Country)
	setOptional(&b, "image_url", changes.ImageURL)
	setPtr(&b, "level", changes.Level)
	setPtr(&b, "status", changes.Status)
	setOptional(&b, "duration", changes.Duration)
	setOptional(&b, "tuition_waiver", changes.TuitionWaiver)
	setOptional(&b, "monthly_stipend", changes.MonthlyStipend)
	setOptional(&b, "application_fee", changes.ApplicationFee)
	setOptional(&b, "flight_ticket", changes.FlightTicket)
	setOptional(&b, "max_age", changes.MaxAge)
	setOptional(&b, "open_date", changes.OpenDate)
	setOptional(&b, "application_deadline", changes.ApplicationDeadline)
	setOptional(&b, "description", changes.Description)
	setOptional(&b, "value", changes.Value)
	setPtr(&b, "field_of_study", changes.FieldOfStudy)
	setPtr(&b, "type", changes.Type)
	setJSON(&b, "eligibility", changes.Eligibility)
	setJSON(&b, "benefits", changes.Benefits)
	setJSON(&b, "requirements", changes.Requirements)
	setJSON(&b, "timeline", changes.Timeline)
	setPtr(&b, "featured", changes.Featured)
	b.set("updated_at", time.Now().UTC())

	query := `
		WITH s AS (
			UPDATE scholarships SET ` + b.assignments() + ` WHERE id = ` + b.arg(id) + `
			RETURNING *
		)
		SELECT ` + scholarshipColumns + `,
			(SELECT COUNT(1) FROM applications a WHERE a.scholarship_id = s.id)
		FROM s`
	var count types.ScholarshipCount
	updated, err := scanScholarship(r.db.QueryRowContext(ctx, query, b.args...), &count.Applications)
	if err != nil {
		return types.Scholarship{}, translate(err)
	}
	updated.Count = &count
	return updated, nil
}

func (r *ScholarshipRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM scholarships WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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
