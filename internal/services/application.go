package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// ApplicationRepository defines persistence operations for applications.
type ApplicationRepository interface {
	List(ctx context.Context, filter types.ApplicationFilter) ([]types.Application, error)
	Count(ctx context.Context, filter types.ApplicationFilter) (int, error)
	CountByStatus(ctx context.Context) (map[types.ApplicationStatus]int, error)
	Get(ctx context.Context, id string) (types.Application, error)
	FindByUserAndScholarship(ctx context.Context, userID, scholarshipID string) (types.Application, error)
	Create(ctx context.Context, a types.Application) (types.Application, error)
	Update(ctx context.Context, id string, changes types.ApplicationChanges) (types.Application, error)
	Review(ctx context.Context, id string, review types.ApplicationReview) (types.Application, error)
	Delete(ctx context.Context, id string) error
}

// ScholarshipGetter reads one scholarship.
type ScholarshipGetter interface {
	Get(ctx context.Context, id string) (types.Scholarship, error)
}

// DocumentLister reads the documents of an application.
type DocumentLister interface {
	ListByApplication(ctx context.Context, applicationID string) ([]types.Document, error)
}

// ApplicationService encapsulates application use-cases of both applicants
// and reviewers.
type ApplicationService struct {
	repo          ApplicationRepository
	scholarships  ScholarshipGetter
	documents     DocumentLister
	notifications *NotificationService
	objects       *DocumentService
	now           func() time.Time
}

func NewApplicationService(repo ApplicationRepository, scholarships ScholarshipGetter, documents DocumentLister, notifications *NotificationService) *ApplicationService {
	return &ApplicationService{
		repo:          repo,
		scholarships:  scholarships,
		documents:     documents,
		notifications: notifications,
		now:           time.Now,
	}
}

// WithDocumentCleanup makes Delete remove stored document objects.
func (s *ApplicationService) WithDocumentCleanup(docs *DocumentService) *ApplicationService {
	s.objects = docs
	return s
}

// List returns one page of applications and the total match count.
func (s *ApplicationService) List(ctx context.Context, filter types.ApplicationFilter) ([]types.Application, int, error) {
	var (
		items []types.Application
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

// Create starts an application by userID for an open scholarship.
func (s *ApplicationService) Create(ctx context.Context, userID, scholarshipID string) (types.Application, error) {
	scholarship, err := s.scholarships.Get(ctx, scholarshipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, ErrScholarshipNotFound
		}
		return types.Application{}, err
	}
	if !scholarship.AcceptsApplications() {
		return types.Application{}, ErrNotAccepting
	}
	if scholarship.DeadlinePassed(s.now()) {
		return types.Application{}, ErrDeadlinePassed
	}

	if _, err := s.repo.FindByUserAndScholarship(ctx, userID, scholarshipID); err == nil {
		return types.Application{}, ErrAlreadyApplied
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Application{}, err
	}

	application, err := s.repo.Create(ctx, types.Application{
		UserID:        userID,
		ScholarshipID: scholarshipID,
		Status:        types.ApplicationDraft,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Application{}, ErrAlreadyApplied
		}
		return types.Application{}, err
	}
	application.Scholarship = summarize(scholarship)

	_, err = s.notifications.Notify(ctx, types.Notification{
		UserID:   userID,
		Type:     types.NotificationInfo,
		Category: types.CategoryApplication,
		Title:    "Application Started",
		Message:  "You started an application for " + scholarship.Title,
		Metadata: metadata(map[string]any{"applicationId": application.ID, "scholarshipId": scholarshipID}),
	})
	if err != nil {
		return types.Application{}, err
	}
	return application, nil
}

// Owned returns an application only when it belongs to userID.
func (s *ApplicationService) Owned(ctx context.Context, userID, id string) (types.Application, error) {
	application, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, ErrApplicationNotFound
		}
		return types.Application{}, err
	}
	if application.UserID != userID {
		return types.Application{}, ErrApplicationNotFound
	}
	return application, nil
}

// Get returns an owned application with its full scholarship and documents.
func (s *ApplicationService) Get(ctx context.Context, userID, id string) (types.ApplicationDetail, error) {
	application, err := s.Owned(ctx, userID, id)
	if err != nil {
		return types.ApplicationDetail{}, err
	}

	detail := types.ApplicationDetail{Application: application}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scholarship, err := s.scholarships.Get(gctx, application.ScholarshipID)
		if err != nil {
			return err
		}
		detail.Scholarship = &scholarship
		return nil
	})
	g.Go(func() (err error) {
		detail.Documents, err = s.documents.ListByApplication(gctx, application.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.ApplicationDetail{}, err
	}
	return detail, nil
}

// ApplicationUpdate is an applicant edit.
type ApplicationUpdate struct {
	Essays *[]types.Essay
	Status *types.ApplicationStatus
}

// Update edits an owned application that is not finalized. Moving into
// review stamps the submission time and notifies the applicant.
func (s *ApplicationService) Update(ctx context.Context, userID, id string, update ApplicationUpdate) (types.Application, error) {
	existing, err := s.Owned(ctx, userID, id)
	if err != nil {
		return types.Application{}, err
	}
	if existing.Status.Finalized() {
		return types.Application{}, ErrFinalized
	}

	changes := types.ApplicationChanges{Essays: update.Essays, Status: update.Status}
	submitted := update.Status != nil && *update.Status == types.ApplicationUnderReview
	if submitted && existing.Status != types.ApplicationUnderReview {
		now := s.now().UTC()
		changes.SubmittedAt = &now
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, ErrApplicationNotFound
		}
		return types.Application{}, err
	}
	updated.Scholarship = existing.Scholarship

	if submitted {
		_, err = s.notifications.Notify(ctx, types.Notification{
			UserID:   userID,
			Type:     types.NotificationSuccess,
			Category: types.CategoryApplication,
			Title:    "Application Submitted",
			Message:  fmt.Sprintf("Your application for %s has been submitted for review.", scholarshipTitle(existing)),
			Metadata: metadata(map[string]any{"applicationId": updated.ID}),
		})
		if err != nil {
			return types.Application{}, err
		}
	}
	return updated, nil
}

// Delete removes an owned application that is not under review.
func (s *ApplicationService) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.Owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if existing.Status == types.ApplicationUnderReview {
		return ErrDeleteUnderReview
	}

	var docs []types.Document
	if s.objects != nil {
		if docs, err = s.documents.ListByApplication(ctx, id); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrApplicationNotFound
		}
		return err
	}
	if s.objects != nil {
		s.objects.removeObjects(ctx, docs)
	}
	return nil
}

// Review records an admin decision and notifies the applicant. Null score
// or notes leave the stored values untouched.
func (s *ApplicationService) Review(ctx context.Context, id string, review types.ApplicationReview) (types.Application, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, ErrApplicationNotFound
		}
		return types.Application{}, err
	}

	if !review.Score.Valid {
		review.Score = types.Optional[int]{}
	}
	if !review.AdminNotes.Valid {
		review.AdminNotes = types.Optional[string]{}
	}
	updated, err := s.repo.Review(ctx, id, review)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Application{}, ErrApplicationNotFound
		}
		return types.Application{}, err
	}

	kind, text := types.NotificationInfo, "updated"
	switch review.Status {
	case types.ApplicationApproved:
		kind, text = types.NotificationSuccess, "approved"
	case types.ApplicationRejected:
		text = "not selected"
	}
	_, err = s.notifications.Notify(ctx, types.Notification{
		UserID:   existing.UserID,
		Type:     kind,
		Category: types.CategoryApplication,
		Title:    "Application " + capitalize(text),
		Message:  fmt.Sprintf("Your application for %s has been %s.", scholarshipTitle(existing), text),
		Metadata: metadata(map[string]any{"applicationId": existing.ID, "newStatus": review.Status}),
	})
	if err != nil {
		return types.Application{}, err
	}
	return updated, nil
}

func summarize(s types.Scholarship) *types.ScholarshipSummary {
	return &types.ScholarshipSummary{
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

func scholarshipTitle(a types.Application) string {
	if a.Scholarship == nil {
		return "this scholarship"
	}
	return a.Scholarship.Title
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
