package services

import (
	"context"
	"errors"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"golang.org/x/sync/errgroup"
)

const recentApplications = 10

// ScholarshipCounter counts scholarships.
type ScholarshipCounter interface {
	Count(ctx context.Context, filter types.ScholarshipFilter) (int, error)
}

// AdminService encapsulates the dashboard and user management.
type AdminService struct {
	profiles     ProfileRepository
	scholarships ScholarshipCounter
	applications ApplicationRepository
}

func NewAdminService(profiles ProfileRepository, scholarships ScholarshipCounter, applications ApplicationRepository) *AdminService {
	return &AdminService{profiles: profiles, scholarships: scholarships, applications: applications}
}

// Dashboard aggregates platform totals and the latest applications. The
// five reads are independent and run concurrently.
func (s *AdminService) Dashboard(ctx context.Context) (types.Dashboard, error) {
	var dash types.Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		dash.Stats.TotalUsers, err = s.profiles.Count(gctx, types.ProfileFilter{})
		return err
	})
	g.Go(func() (err error) {
		dash.Stats.TotalScholarships, err = s.scholarships.Count(gctx, types.ScholarshipFilter{})
		return err
	})
	g.Go(func() (err error) {
		dash.Stats.TotalApplications, err = s.applications.Count(gctx, types.ApplicationFilter{})
		return err
	})
	g.Go(func() (err error) {
		dash.Stats.ApplicationsByStatus, err = s.applications.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		dash.RecentApplications, err = s.applications.List(gctx, types.ApplicationFilter{NewestFirst: true, Limit: recentApplications})
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Dashboard{}, err
	}
	return dash, nil
}

// ListUsers returns one page of profiles and the total match count.
func (s *AdminService) ListUsers(ctx context.Context, filter types.ProfileFilter) ([]types.AdminUser, int, error) {
	var (
		users []types.AdminUser
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.profiles.List(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.profiles.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *AdminService) SetRole(ctx context.Context, id string, role types.Role) (types.Profile, error) {
	profile, err := s.profiles.SetRole(ctx, id, role)
	if err != nil {
		return types.Profile{}, userErr(err)
	}
	return profile, nil
}

func (s *AdminService) SetStatus(ctx context.Context, id string, status types.ProfileStatus) (types.Profile, error) {
	profile, err := s.profiles.SetStatus(ctx, id, status)
	if err != nil {
		return types.Profile{}, userErr(err)
	}
	return profile, nil
}

func userErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
