package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"golang.org/x/sync/errgroup"
)

const featuredLimit = 6

// ScholarshipRepository defines persistence operations for scholarships.
type ScholarshipRepository interface {
	List(ctx context.Context, filter types.ScholarshipFilter) ([]types.Scholarship, error)
	Count(ctx context.Context, filter types.ScholarshipFilter) (int, error)
	Get(ctx context.Context, id string) (types.Scholarship, error)
	Create(ctx context.Context, s types.Scholarship) (types.Scholarship, error)
	Update(ctx context.Context, id string, changes types.ScholarshipChanges) (types.Scholarship, error)
	Delete(ctx context.Context, id string) error
}

// ScholarshipService encapsulates scholarship use-cases.
type ScholarshipService struct {
	repo ScholarshipRepository
}

func NewScholarshipService(repo ScholarshipRepository) *ScholarshipService {
	return &ScholarshipService{repo: repo}
}

// List returns one page of listings and the total match count. Callers that
// are not administrators never see drafts.
func (s *ScholarshipService) List(ctx context.Context, filter types.ScholarshipFilter, admin bool) ([]types.Scholarship, int, error) {
	if !admin {
		if filter.Status == types.ScholarshipDraft {
			return []types.Scholarship{}, 0, nil
		}
		filter.ExcludeDrafts = true
	}

	var (
		items []types.Scholarship
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = s.repo.List(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.repo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Featured returns up to six featured open listings, soonest deadline first.
func (s *ScholarshipService) Featured(ctx context.Context) ([]types.Scholarship, error) {
	featured := true
	return s.repo.List(ctx, types.ScholarshipFilter{
		Status:   types.ScholarshipOpen,
		Featured: &featured,
		SortBy:   types.SortByApplicationDeadline,
		Limit:    featuredLimit,
	})
}

// Get returns a listing. Drafts are reported missing to non-administrators.
func (s *ScholarshipService) Get(ctx context.Context, id string, admin bool) (types.Scholarship, error) {
	scholarship, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Scholarship{}, scholarshipErr(err)
	}
	if scholarship.Status == types.ScholarshipDraft && !admin {
		return types.Scholarship{}, ErrScholarshipNotFound
	}
	return scholarship, nil
}

func (s *ScholarshipService) Create(ctx context.Context, scholarship types.Scholarship) (types.Scholarship, error) {
	return s.repo.Create(ctx, scholarship)
}

func (s *ScholarshipService) Update(ctx context.Context, id string, changes types.ScholarshipChanges) (types.Scholarship, error) {
	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return types.Scholarship{}, scholarshipErr(err)
	}
	return updated, nil
}

// Delete removes a listing that nobody has applied to.
func (s *ScholarshipService) Delete(ctx context.Context, id string) error {
	scholarship, err := s.repo.Get(ctx, id)
	if err != nil {
		return scholarshipErr(err)
	}
	if scholarship.Count != nil && scholarship.Count.Applications > 0 {
		return badRequest(fmt.Sprintf("Cannot delete: %d applications exist. Archive it instead.", scholarship.Count.Applications))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return scholarshipErr(err)
	}
	return nil
}

func scholarshipErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrScholarshipNotFound
	}
	return err
}
