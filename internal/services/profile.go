package services

import (
	"context"
	"errors"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (types.Profile, error)
	Update(ctx context.Context, id string, changes types.ProfileChanges) (types.Profile, error)
	SetRole(ctx context.Context, id string, role types.Role) (types.Profile, error)
	SetStatus(ctx context.Context, id string, status types.ProfileStatus) (types.Profile, error)
	Counts(ctx context.Context, id string) (types.ProfileCount, error)
	List(ctx context.Context, filter types.ProfileFilter) ([]types.AdminUser, error)
	Count(ctx context.Context, filter types.ProfileFilter) (int, error)
}

// ProfileService encapsulates profile use-cases.
type ProfileService struct {
	repo ProfileRepository
}

func NewProfileService(repo ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo}
}

// Me returns the caller's profile with its related row counts.
func (s *ProfileService) Me(ctx context.Context, id string) (types.Profile, error) {
	var (
		profile types.Profile
		counts  types.ProfileCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = s.repo.Get(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.repo.Counts(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Profile{}, profileErr(err)
	}
	profile.Count = &counts
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, id string, changes types.ProfileChanges) (types.Profile, error) {
	profile, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return types.Profile{}, profileErr(err)
	}
	return profile, nil
}

// Onboarding is the first-run profile questionnaire.
type Onboarding struct {
	Nationality        string
	ResidingCountry    string
	DateOfBirth        types.Optional[types.Date]
	CurrentInstitution *string
	EducationLevel     types.EducationLevel
	Interests          []string
}

// CompleteOnboarding stores the questionnaire and flags the profile as
// onboarded.
func (s *ProfileService) CompleteOnboarding(ctx context.Context, id string, o Onboarding) (types.Profile, error) {
	done := true
	interests := o.Interests
	changes := types.ProfileChanges{
		Nationality:         types.Some(o.Nationality),
		ResidingCountry:     types.Some(o.ResidingCountry),
		EducationLevel:      types.Some(o.EducationLevel),
		Interests:           &interests,
		OnboardingCompleted: &done,
	}
	if o.DateOfBirth.Valid {
		changes.DateOfBirth = types.OptionalTime(o.DateOfBirth)
	}
	if o.CurrentInstitution != nil {
		changes.CurrentInstitution = types.Some(*o.CurrentInstitution)
	}
	return s.Update(ctx, id, changes)
}

// Public returns the publicly visible subset of a profile.
func (s *ProfileService) Public(ctx context.Context, id string) (types.PublicProfile, error) {
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.PublicProfile{}, profileErr(err)
	}
	return profile.Public(), nil
}

func profileErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrProfileNotFound
	}
	return err
}
