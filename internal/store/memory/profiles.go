package memory

import (
	"context"
	"sort"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
)

type Profiles struct {
	db *DB
}

func (r *Profiles) Get(ctx context.Context, id string) (types.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (r *Profiles) FindByAuthID(ctx context.Context, authID string) (types.Profile, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, p := range r.db.profiles {
		if p.AuthID == authID {
			return p, nil
		}
	}
	return types.Profile{}, store.ErrNotFound
}

func (r *Profiles) UpsertByAuthID(ctx context.Context, profile types.Profile) (types.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.tick()
	for id, p := range r.db.profiles {
		if p.AuthID == profile.AuthID {
			p.FirstName = profile.FirstName
			p.LastName = profile.LastName
			p.UpdatedAt = now
			r.db.profiles[id] = p
			return p, nil
		}
	}

	p := types.Profile{
		ID:            newID(),
		AuthID:        profile.AuthID,
		Email:         profile.Email,
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		Interests:     []string{},
		Achievements:  []string{},
		Highlights:    []string{},
		Organizations: []string{},
		Role:          profile.Role,
		Status:        types.ProfileActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.Role == "" {
		p.Role = types.RoleStudent
	}
	r.db.profiles[p.ID] = p
	return p, nil
}

func (r *Profiles) Update(ctx context.Context, id string, changes types.ProfileChanges) (types.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	applyPtr(&p.FirstName, changes.FirstName)
	applyPtr(&p.LastName, changes.LastName)
	applyOptional(&p.AvatarURL, changes.AvatarURL)
	applyOptional(&p.Nationality, changes.Nationality)
	applyOptional(&p.ResidingCountry, changes.ResidingCountry)
	applyOptional(&p.DateOfBirth, changes.DateOfBirth)
	applyOptional(&p.CurrentInstitution, changes.CurrentInstitution)
	applyOptional(&p.EducationLevel, changes.EducationLevel)
	applyOptional(&p.PersonalStatement, changes.PersonalStatement)
	applyOptional(&p.StudyPlan, changes.StudyPlan)
	applyPtr(&p.Interests, changes.Interests)
	applyPtr(&p.Achievements, changes.Achievements)
	applyPtr(&p.Highlights, changes.Highlights)
	applyPtr(&p.Organizations, changes.Organizations)
	applyPtr(&p.OnboardingCompleted, changes.OnboardingCompleted)
	p.UpdatedAt = r.db.tick()
	r.db.profiles[id] = p
	return p, nil
}

func (r *Profiles) SetRole(ctx context.Context, id string, role types.Role) (types.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	p.Role = role
	p.UpdatedAt = r.db.tick()
	r.db.profiles[id] = p
	return p, nil
}

func (r *Profiles) SetStatus(ctx context.Context, id string, status types.ProfileStatus) (types.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = r.db.tick()
	r.db.profiles[id] = p
	return p, nil
}

func (r *Profiles) Counts(ctx context.Context, id string) (types.ProfileCount, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var c types.ProfileCount
	for _, a := range r.db.applications {
		if a.UserID == id {
			c.Applications++
		}
	}
	for _, d := range r.db.documents {
		if d.UserID == id {
			c.Documents++
		}
	}
	for _, n := range r.db.notifications {
		if n.UserID == id && !n.IsRead {
			c.Notifications++
		}
	}
	return c, nil
}

func (r *Profiles) match(filter types.ProfileFilter) []types.Profile {
	out := make([]types.Profile, 0)
	for _, p := range r.db.profiles {
		if filter.Search != "" && !containsFold(p.FirstName, filter.Search) &&
			!containsFold(p.LastName, filter.Search) && !containsFold(p.Email, filter.Search) {
			continue
		}
		if filter.Role != "" && p.Role != filter.Role {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Profiles) List(ctx context.Context, filter types.ProfileFilter) ([]types.AdminUser, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	matched := r.match(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	users := make([]types.AdminUser, 0)
	for _, p := range page(matched, filter.Offset, filter.Limit) {
		u := types.AdminUser{
			ID:                  p.ID,
			Email:               p.Email,
			FirstName:           p.FirstName,
			LastName:            p.LastName,
			Role:                p.Role,
			Status:              p.Status,
			OnboardingCompleted: p.OnboardingCompleted,
			CreatedAt:           p.CreatedAt,
		}
		for _, a := range r.db.applications {
			if a.UserID == p.ID {
				u.Count.Applications++
			}
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *Profiles) Count(ctx context.Context, filter types.ProfileFilter) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.match(filter)), nil
}
