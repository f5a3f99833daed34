package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/scholaraid/apiserver/types"
)

const profileColumns = `id, auth_id, email, first_name, last_name, avatar_url, nationality, residing_country,
	date_of_birth, current_institution, education_level, interests, personal_statement, study_plan,
	achievements, highlights, organizations, role, status, onboarding_completed, created_at, updated_at`

// ProfileRepository handles persistence for profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func scanProfile(row rowScanner) (types.Profile, error) {
	var p types.Profile
	err := row.Scan(
		&p.ID,
		&p.AuthID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.AvatarURL,
		&p.Nationality,
		&p.ResidingCountry,
		&p.DateOfBirth,
		&p.CurrentInstitution,
		&p.EducationLevel,
		pq.Array(&p.Interests),
		&p.PersonalStatement,
		&p.StudyPlan,
		pq.Array(&p.Achievements),
		pq.Array(&p.Highlights),
		pq.Array(&p.Organizations),
		&p.Role,
		&p.Status,
		&p.OnboardingCompleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (types.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Profile{}, translate(err)
	}
	return p, nil
}

func (r *ProfileRepository) FindByAuthID(ctx context.Context, authID string) (types.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE auth_id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, authID))
	if err != nil {
		return types.Profile{}, translate(err)
	}
	return p, nil
}

// UpsertByAuthID inserts a profile or refreshes the names of an existing one.
func (r *ProfileRepository) UpsertByAuthID(ctx context.Context, profile types.Profile) (types.Profile, error) {
	now := time.Now().UTC()
	role := profile.Role
	if role == "" {
		role = types.RoleStudent
	}

	const query = `
		INSERT INTO profiles (auth_id, email, first_name, last_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (auth_id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRowContext(ctx, query,
		profile.AuthID,
		profile.Email,
		profile.FirstName,
		profile.LastName,
		role,
		now,
	))
	if err != nil {
		return types.Profile{}, translate(err)
	}
	return p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, id string, changes types.ProfileChanges) (types.Profile, error) {
	var b builder
	setPtr(&b, "first_name", changes.FirstName)
	setPtr(&b, "last_name", changes.LastName)
	setOptional(&b, "avatar_url", changes.AvatarURL)
	setOptional(&b, "nationality", changes.Nationality)
	setOptional(&b, "residing_country", changes.ResidingCountry)
	setOptional(&b, "date_of_birth", changes.DateOfBirth)
	setOptional(&b, "current_institution", changes.CurrentInstitution)
	setOptional(&b, "education_level", changes.EducationLevel)
	setOptional(&b, "personal_statement", changes.PersonalStatement)
	setOptional(&b, "study_plan", changes.StudyPlan)
	if changes.Interests != nil {
		b.set("interests", textArrayPtr(changes.Interests))
	}
	if changes.Achievements != nil {
		b.set("achievements", textArrayPtr(changes.Achievements))
	}
	if changes.Highlights != nil {
		b.set("highlights", textArrayPtr(changes.Highlights))
	}
	if changes.Organizations != nil {
		b.set("organizations", textArrayPtr(changes.Organizations))
	}
	setPtr(&b, "onboarding_completed", changes.OnboardingCompleted)
	b.set("updated_at", time.Now().UTC())

	query := `UPDATE profiles SET ` + b.assignments() + ` WHERE id = ` + b.arg(id) + ` RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return types.Profile{}, translate(err)
	}
	return p, nil
}

func (r *ProfileRepository) SetRole(ctx context.Context, id string, role types.Role) (types.Profile, error) {
	const query = `UPDATE profiles SET role = $1, updated_at = $2 WHERE id = $3 RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, role, time.Now().UTC(), id))
	if err != nil {
		return types.Profile{}, translate(err)
	}
	return p, nil
}

func (r *ProfileRepository) SetStatus(ctx context.Context, id string, status types.ProfileStatus) (types.Profile, error) {
	const query = `UPDATE profiles SET status = $1, updated_at = $2 WHERE id = $3 RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, status, time.Now().UTC(), id))
	if err != nil {
		return types.Profile{}, translate(err)
	}
	return p, nil
}

// Counts aggregates the applications, documents and unread notifications of
// a profile.
func (r *ProfileRepository) Counts(ctx context.Context, id string) (types.ProfileCount, error) {
	const query = `
		SELECT
			(SELECT COUNT(1) FROM applications WHERE user_id = $1),
			(SELECT COUNT(1) FROM documents WHERE user_id = $1),
			(SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = FALSE)`
	var c types.ProfileCount
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&c.Applications, &c.Documents, &c.Notifications); err != nil {
		return types.ProfileCount{}, err
	}
	return c, nil
}

func profileFilter(filter types.ProfileFilter) *builder {
	b := &builder{}
	if filter.Search != "" {
		b.ilike(filter.Search, "p.first_name", "p.last_name", "p.email")
	}
	if filter.Role != "" {
		b.eq("p.role", filter.Role)
	}
	if filter.Status != "" {
		b.eq("p.status", filter.Status)
	}
	return b
}

func (r *ProfileRepository) List(ctx context.Context, filter types.ProfileFilter) ([]types.AdminUser, error) {
	b := profileFilter(filter)
	query := `
		SELECT p.id, p.email, p.first_name, p.last_name, p.role, p.status, p.onboarding_completed, p.created_at,
			(SELECT COUNT(1) FROM applications a WHERE a.user_id = p.id)
		FROM profiles p` + b.where() + `
		ORDER BY p.created_at DESC` + b.page(filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.AdminUser, 0)
	for rows.Next() {
		var u types.AdminUser
		if err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.FirstName,
			&u.LastName,
			&u.Role,
			&u.Status,
			&u.OnboardingCompleted,
			&u.CreatedAt,
			&u.Count.Applications,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *ProfileRepository) Count(ctx context.Context, filter types.ProfileFilter) (int, error) {
	b := profileFilter(filter)
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles p`+b.where(), b.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
