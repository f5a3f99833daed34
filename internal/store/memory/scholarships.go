package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
)

type Scholarships struct {
	db *DB
}

func (r *Scholarships) withCount(s types.Scholarship) types.Scholarship {
	count := types.ScholarshipCount{}
	for _, a := range r.db.applications {
		if a.ScholarshipID == s.ID {
			count.Applications++
		}
	}
	s.Count = &count
	return s
}

func (r *Scholarships) match(filter types.ScholarshipFilter) []types.Scholarship {
	out := make([]types.Scholarship, 0)
	for _, s := range r.db.scholarships {
		if filter.Search != "" && !containsFold(s.Title, filter.Search) &&
			!containsFold(s.Provider, filter.Search) && !containsFold(deref(s.Description), filter.Search) {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.ExcludeDrafts && s.Status == types.ScholarshipDraft {
			continue
		}
		if filter.Country != "" && !containsFold(s.Country, filter.Country) {
			continue
		}
		if filter.Level != "" && !containsFold(s.Level, filter.Level) {
			continue
		}
		if filter.FieldOfStudy != "" && !containsFold(s.FieldOfStudy, filter.FieldOfStudy) {
			continue
		}
		if filter.Type != "" && s.Type != filter.Type {
			continue
		}
		if filter.Featured != nil && s.Featured != *filter.Featured {
			continue
		}
		out = append(out, s)
	}
	return out
}

func compareScholarships(a, b types.Scholarship, by types.ScholarshipSort) int {
	switch by {
	case types.SortByApplicationDeadline, types.SortByDeadline:
		return compareTimePtr(a.ApplicationDeadline, b.ApplicationDeadline)
	case types.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func (r *Scholarships) List(ctx context.Context, filter types.ScholarshipFilter) ([]types.Scholarship, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	matched := r.match(filter)
	byDeadline := filter.SortBy == types.SortByApplicationDeadline || filter.SortBy == types.SortByDeadline
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if byDeadline && (a.ApplicationDeadline == nil) != (b.ApplicationDeadline == nil) {
			return b.ApplicationDeadline == nil
		}
		c := compareScholarships(a, b, filter.SortBy)
		if filter.Descending {
			c = -c
		}
		if c == 0 {
			return a.ID < b.ID
		}
		return c < 0
	})

	out := make([]types.Scholarship, 0)
	for _, s := range page(matched, filter.Offset, filter.Limit) {
		out = append(out, r.withCount(s))
	}
	return out, nil
}

func (r *Scholarships) Count(ctx context.Context, filter types.ScholarshipFilter) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.match(filter)), nil
}

func (r *Scholarships) Get(ctx context.Context, id string) (types.Scholarship, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.scholarships[id]
	if !ok {
		return types.Scholarship{}, store.ErrNotFound
	}
	return r.withCount(s), nil
}

func (r *Scholarships) Create(ctx context.Context, s types.Scholarship) (types.Scholarship, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.tick()
	s.ID = newID()
	if s.Status == "" {
		s.Status = types.ScholarshipDraft
	}
	if s.Type == "" {
		s.Type = types.ScholarshipGovernment
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	s.Count = nil
	r.db.scholarships[s.ID] = s
	return r.withCount(s), nil
}

func (r *Scholarships) Update(ctx context.Context, id string, changes types.ScholarshipChanges) (types.Scholarship, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.scholarships[id]
	if !ok {
		return types.Scholarship{}, store.ErrNotFound
	}
	applyPtr(&s.Title, changes.Title)
	applyPtr(&s.Provider, changes.Provider)
	applyPtr(&s.Country, changes.Country)
	applyOptional(&s.ImageURL, changes.ImageURL)
	applyPtr(&s.Level, changes.Level)
	applyPtr(&s.Status, changes.Status)
	applyOptional(&s.Duration, changes.Duration)
	applyOptional(&s.TuitionWaiver, changes.TuitionWaiver)
	applyOptional(&s.MonthlyStipend, changes.MonthlyStipend)
	applyOptional(&s.ApplicationFee, changes.ApplicationFee)
	applyOptional(&s.FlightTicket, changes.FlightTicket)
	applyOptional(&s.MaxAge, changes.MaxAge)
	applyOptional(&s.OpenDate, changes.OpenDate)
	applyOptional(&s.ApplicationDeadline, changes.ApplicationDeadline)
	applyOptional(&s.Description, changes.Description)
	applyOptional(&s.Value, changes.Value)
	applyPtr(&s.FieldOfStudy, changes.FieldOfStudy)
	applyPtr(&s.Type, changes.Type)
	applyRaw(&s.Eligibility, changes.Eligibility)
	applyRaw(&s.Benefits, changes.Benefits)
	applyRaw(&s.Requirements, changes.Requirements)
	applyRaw(&s.Timeline, changes.Timeline)
	applyPtr(&s.Featured, changes.Featured)
	s.UpdatedAt = r.db.tick()
	r.db.scholarships[id] = s
	return r.withCount(s), nil
}

func (r *Scholarships) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.scholarships[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.scholarships, id)
	return nil
}

func applyRaw[T ~[]byte](dst *T, o types.Optional[T]) {
	if !o.Set {
		return
	}
	if !o.Valid {
		*dst = nil
		return
	}
	*dst = o.Value
}
