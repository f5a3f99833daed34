package memory

import (
	"context"
	"sort"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
)

type Applications struct {
	db *DB
}

func (r *Applications) detail(a types.Application) types.Application {
	if s, ok := r.db.scholarships[a.ScholarshipID]; ok {
		a.Scholarship = &types.ScholarshipSummary{
			ID:                  s.ID,
			Title:               s.Title,
			Provider:            s.Provider,
			Country:             s.Country,
			Status:              s.Status,
			ApplicationDeadline: s.ApplicationDeadline,
			Value:               s.Value,
			ImageURL:            s.ImageURL,
		}
	}
	if p, ok := r.db.profiles[a.UserID]; ok {
		a.User = &types.UserSummary{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, Email: p.Email}
	}
	count := types.ApplicationCount{}
	for _, d := range r.db.documents {
		if d.ApplicationID == a.ID {
			count.Documents++
		}
	}
	a.Count = &count
	return a
}

func (r *Applications) match(filter types.ApplicationFilter) []types.Application {
	out := make([]types.Application, 0)
	for _, a := range r.db.applications {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.ScholarshipID != "" && a.ScholarshipID != filter.ScholarshipID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (r *Applications) List(ctx context.Context, filter types.ApplicationFilter) ([]types.Application, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	matched := r.match(filter)
	sort.Slice(matched, func(i, j int) bool {
		if filter.NewestFirst {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	out := make([]types.Application, 0)
	for _, a := range page(matched, filter.Offset, filter.Limit) {
		out = append(out, r.detail(a))
	}
	return out, nil
}

func (r *Applications) Count(ctx context.Context, filter types.ApplicationFilter) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.match(filter)), nil
}

func (r *Applications) CountByStatus(ctx context.Context) (map[types.ApplicationStatus]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	counts := make(map[types.ApplicationStatus]int, len(types.AllApplicationStatuses))
	for _, status := range types.AllApplicationStatuses {
		counts[status] = 0
	}
	for _, a := range r.db.applications {
		counts[a.Status]++
	}
	return counts, nil
}

func (r *Applications) Get(ctx context.Context, id string) (types.Application, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.applications[id]
	if !ok {
		return types.Application{}, store.ErrNotFound
	}
	return r.detail(a), nil
}

func (r *Applications) FindByUserAndScholarship(ctx context.Context, userID, scholarshipID string) (types.Application, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.applications {
		if a.UserID == userID && a.ScholarshipID == scholarshipID {
			return a, nil
		}
	}
	return types.Application{}, store.ErrNotFound
}

func (r *Applications) Create(ctx context.Context, a types.Application) (types.Application, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.applications {
		if existing.UserID == a.UserID && existing.ScholarshipID == a.ScholarshipID {
			return types.Application{}, store.ErrConflict
		}
	}
	now := r.db.tick()
	a.ID = newID()
	if a.Status == "" {
		a.Status = types.ApplicationDraft
	}
	if a.Essays == nil {
		a.Essays = []types.Essay{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	r.db.applications[a.ID] = a
	return a, nil
}

func (r *Applications) Update(ctx context.Context, id string, changes types.ApplicationChanges) (types.Application, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.applications[id]
	if !ok {
		return types.Application{}, store.ErrNotFound
	}
	applyPtr(&a.Essays, changes.Essays)
	applyPtr(&a.Status, changes.Status)
	if changes.SubmittedAt != nil {
		at := *changes.SubmittedAt
		a.SubmittedAt = &at
	}
	a.UpdatedAt = r.db.tick()
	r.db.applications[id] = a
	return a, nil
}

func (r *Applications) Review(ctx context.Context, id string, review types.ApplicationReview) (types.Application, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.applications[id]
	if !ok {
		return types.Application{}, store.ErrNotFound
	}
	a.Status = review.Status
	applyOptional(&a.Score, review.Score)
	applyOptional(&a.AdminNotes, review.AdminNotes)
	a.UpdatedAt = r.db.tick()
	r.db.applications[id] = a
	return a, nil
}

func (r *Applications) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.applications[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.applications, id)
	for docID, d := range r.db.documents {
		if d.ApplicationID == id {
			delete(r.db.documents, docID)
		}
	}
	return nil
}
