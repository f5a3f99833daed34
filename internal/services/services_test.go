package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/scholaraid/apiserver/internal/identity"
	"github.com/scholaraid/apiserver/internal/storage"
	"github.com/scholaraid/apiserver/internal/store/memory"
	"github.com/scholaraid/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	db            *memory.DB
	objects       *storage.Storage
	notifications *NotificationService
	scholarships  *ScholarshipService
	applications  *ApplicationService
	documents     *DocumentService
	admin         *AdminService
	now           time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	f := &fixture{
		db:      db,
		objects: storage.NewStorage(storage.NewMemoryBackend("documents")),
		now:     time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.notifications = NewNotificationService(db.Notifications(), nil, nil)
	f.scholarships = NewScholarshipService(db.Scholarships())
	f.applications = NewApplicationService(db.Applications(), db.Scholarships(), db.Documents(), f.notifications)
	f.applications.now = func() time.Time { return f.now }
	f.documents = NewDocumentService(db.Documents(), f.applications, f.objects, nil)
	f.applications.WithDocumentCleanup(f.documents)
	f.admin = NewAdminService(db.Profiles(), db.Scholarships(), db.Applications())
	return f
}

func (f *fixture) profile(t *testing.T, email string) types.Profile {
	t.Helper()
	p, err := f.db.Profiles().UpsertByAuthID(context.Background(), types.Profile{AuthID: "auth-" + email, Email: email, FirstName: "F", LastName: "L"})
	require.NoError(t, err)
	return p
}

func (f *fixture) scholarship(t *testing.T, status types.ScholarshipStatus, deadline *time.Time) types.Scholarship {
	t.Helper()
	s, err := f.db.Scholarships().Create(context.Background(), types.Scholarship{
		Title: "Fund", Provider: "P", Country: "C", Level: "PHD", FieldOfStudy: "Maths",
		Status: status, ApplicationDeadline: deadline,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) titles(t *testing.T, userID string) []string {
	t.Helper()
	page, err := f.notifications.List(context.Background(), types.NotificationFilter{UserID: userID, Limit: 100})
	require.NoError(t, err)
	out := make([]string, 0, len(page.Items))
	for _, n := range page.Items {
		out = append(out, n.Title)
	}
	return out
}

func TestApplicationCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.profile(t, "a@example.com")

	t.Run("deadline at the current instant is still open", func(t *testing.T) {
		deadline := f.now
		s := f.scholarship(t, types.ScholarshipOpen, &deadline)
		app, err := f.applications.Create(ctx, user.ID, s.ID)
		require.NoError(t, err)
		assert.Equal(t, types.ApplicationDraft, app.Status)
		require.NotNil(t, app.Scholarship)
		assert.Equal(t, s.ID, app.Scholarship.ID)
	})

	t.Run("deadline passed", func(t *testing.T) {
		deadline := f.now.Add(-time.Second)
		s := f.scholarship(t, types.ScholarshipOpen, &deadline)
		_, err := f.applications.Create(ctx, user.ID, s.ID)
		assert.Equal(t, ErrDeadlinePassed, err)
	})

	t.Run("upcoming scholarships do not accept applications", func(t *testing.T) {
		s := f.scholarship(t, types.ScholarshipUpcoming, nil)
		_, err := f.applications.Create(ctx, user.ID, s.ID)
		assert.Equal(t, ErrNotAccepting, err)
	})

	t.Run("unknown scholarship", func(t *testing.T) {
		_, err := f.applications.Create(ctx, user.ID, "0b5c2d5e-0000-4000-8000-000000000000")
		assert.Equal(t, ErrScholarshipNotFound, err)
	})

	t.Run("duplicate", func(t *testing.T) {
		s := f.scholarship(t, types.ScholarshipOpen, nil)
		_, err := f.applications.Create(ctx, user.ID, s.ID)
		require.NoError(t, err)
		_, err = f.applications.Create(ctx, user.ID, s.ID)
		assert.Equal(t, ErrAlreadyApplied, err)
	})
}

func TestApplicationUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.profile(t, "a@example.com")
	s := f.scholarship(t, types.ScholarshipOpen, nil)
	app, err := f.applications.Create(ctx, user.ID, s.ID)
	require.NoError(t, err)

	review := types.ApplicationUnderReview
	updated, err := f.applications.Update(ctx, user.ID, app.ID, ApplicationUpdate{Status: &review})
	require.NoError(t, err)
	require.NotNil(t, updated.SubmittedAt)
	first := *updated.SubmittedAt

	f.now = f.now.Add(time.Hour)
	essays := []types.Essay{{Title: "Why", Content: "Because"}}
	updated, err = f.applications.Update(ctx, user.ID, app.ID, ApplicationUpdate{Essays: &essays, Status: &review})
	require.NoError(t, err)
	assert.Equal(t, first, *updated.SubmittedAt)
	assert.Equal(t, essays, updated.Essays)

	assert.Equal(t, ErrDeleteUnderReview, f.applications.Delete(ctx, user.ID, app.ID))

	other := f.profile(t, "b@example.com")
	_, err = f.applications.Update(ctx, other.ID, app.ID, ApplicationUpdate{Status: &review})
	assert.Equal(t, ErrApplicationNotFound, err)

	_, err = f.applications.Review(ctx, app.ID, types.ApplicationReview{Status: types.ApplicationRejected})
	require.NoError(t, err)
	withdrawn := types.ApplicationWithdrawn
	_, err = f.applications.Update(ctx, user.ID, app.ID, ApplicationUpdate{Status: &withdrawn})
	assert.Equal(t, ErrFinalized, err)

	assert.ElementsMatch(t, []string{"Application Started", "Application Submitted", "Application Submitted", "Application Not selected"}, f.titles(t, user.ID))
}

func TestApplicationReviewKeepsScoreOnNull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.profile(t, "a@example.com")
	s := f.scholarship(t, types.ScholarshipOpen, nil)
	app, err := f.applications.Create(ctx, user.ID, s.ID)
	require.NoError(t, err)

	reviewed, err := f.applications.Review(ctx, app.ID, types.ApplicationReview{
		Status:     types.ApplicationUnderReview,
		Score:      types.Some(70),
		AdminNotes: types.Some("first pass"),
	})
	require.NoError(t, err)
	require.NotNil(t, reviewed.Score)

	reviewed, err = f.applications.Review(ctx, app.ID, types.ApplicationReview{
		Status:     types.ApplicationApproved,
		Score:      types.Null[int](),
		AdminNotes: types.Null[string](),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ApplicationApproved, reviewed.Status)
	require.NotNil(t, reviewed.Score)
	assert.Equal(t, 70, *reviewed.Score)
	require.NotNil(t, reviewed.AdminNotes)
	assert.Equal(t, "first pass", *reviewed.AdminNotes)

	_, err = f.applications.Review(ctx, "0b5c2d5e-0000-4000-8000-000000000000", types.ApplicationReview{Status: types.ApplicationApproved})
	assert.Equal(t, ErrApplicationNotFound, err)
}

func TestApplicationDeleteRemovesDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.profile(t, "a@example.com")
	s := f.scholarship(t, types.ScholarshipOpen, nil)
	app, err := f.applications.Create(ctx, user.ID, s.ID)
	require.NoError(t, err)

	doc, err := f.documents.Upload(ctx, user.ID, app.ID, Upload{
		Filename: "cv.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", doc.Name)

	require.NoError(t, f.applications.Delete(ctx, user.ID, app.ID))

	_, err = f.objects.Get(ctx, doc.ObjectKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentUploadRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.profile(t, "a@example.com")
	s := f.scholarship(t, types.ScholarshipOpen, nil)
	app, err := f.applications.Create(ctx, user.ID, s.ID)
	require.NoError(t, err)

	_, err = f.documents.Upload(ctx, user.ID, app.ID, Upload{Filename: "empty.txt", Body: strings.NewReader("")})
	assert.Equal(t, ErrEmptyDocument, err)

	other := f.profile(t, "b@example.com")
	_, err = f.documents.Upload(ctx, other.ID, app.ID, Upload{Filename: "x.txt", Size: 1, Body: strings.NewReader("x")})
	assert.Equal(t, ErrApplicationNotFound, err)

	_, err = f.applications.Review(ctx, app.ID, types.ApplicationReview{Status: types.ApplicationApproved})
	require.NoError(t, err)
	_, err = f.documents.Upload(ctx, user.ID, app.ID, Upload{Filename: "x.txt", Size: 1, Body: strings.NewReader("x")})
	assert.Equal(t, ErrFinalizedDocuments, err)

	disabled := NewDocumentService(f.db.Documents(), f.applications, nil, nil)
	assert.False(t, disabled.Enabled())
	_, _, err = disabled.Open(ctx, user.ID, app.ID, "any")
	assert.Equal(t, ErrStorageDisabled, err)
}

func TestScholarshipVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.scholarship(t, types.ScholarshipOpen, nil)
	draft := f.scholarship(t, types.ScholarshipDraft, nil)

	items, total, err := f.scholarships.List(ctx, types.ScholarshipFilter{Status: types.ScholarshipDraft, Limit: 20}, false)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)

	_, total, err = f.scholarships.List(ctx, types.ScholarshipFilter{Limit: 20}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = f.scholarships.List(ctx, types.ScholarshipFilter{Limit: 20}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, err = f.scholarships.Get(ctx, draft.ID, false)
	assert.Equal(t, ErrScholarshipNotFound, err)
	got, err := f.scholarships.Get(ctx, draft.ID, true)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
}

func TestScholarshipFeatured(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := range 8 {
		deadline := f.now.Add(time.Duration(8-i) * 24 * time.Hour)
		_, err := f.db.Scholarships().Create(ctx, types.Scholarship{
			Title: "Featured", Provider: "P", Country: "C", Level: "PHD", FieldOfStudy: "Maths",
			Status: types.ScholarshipOpen, Featured: true, ApplicationDeadline: &deadline,
		})
		require.NoError(t, err)
	}
	f.scholarship(t, types.ScholarshipOpen, nil)

	featured, err := f.scholarships.Featured(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 6)
	for i := 1; i < len(featured); i++ {
		assert.False(t, featured[i].ApplicationDeadline.Before(*featured[i-1].ApplicationDeadline))
	}
}

func TestScholarshipDeleteWithApplications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.profile(t, "a@example.com")
	s := f.scholarship(t, types.ScholarshipOpen, nil)
	_, err := f.applications.Create(ctx, user.ID, s.ID)
	require.NoError(t, err)

	err = f.scholarships.Delete(ctx, s.ID)
	assert.EqualError(t, err, "Cannot delete: 1 applications exist. Archive it instead.")

	empty := f.scholarship(t, types.ScholarshipClosed, nil)
	require.NoError(t, f.scholarships.Delete(ctx, empty.ID))
	assert.Equal(t, ErrScholarshipNotFound, f.scholarships.Delete(ctx, empty.ID))
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishNotification(context.Context, types.NotificationEvent) error {
	p.calls++
	return errors.New("broker unavailable")
}

func TestNotifyKeepsNotificationWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	core, logs := observer.New(zap.WarnLevel)
	publisher := &failingPublisher{}
	svc := NewNotificationService(db.Notifications(), publisher, zap.New(core))

	n, err := svc.Notify(ctx, types.Notification{
		UserID: "user-1", Type: types.NotificationInfo, Category: types.CategorySystem, Title: "Hello", Message: "World",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, 1, publisher.calls)
	assert.Equal(t, 1, logs.FilterMessage("failed to publish notification event").Len())

	page, err := svc.List(ctx, types.NotificationFilter{UserID: "user-1", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Unread)
}

func TestNotifyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := types.Notification{UserID: "user-1", Type: types.NotificationSuccess, Category: types.CategorySystem, Title: "Welcome", Message: "Hi"}

	require.NoError(t, f.notifications.NotifyOnce(ctx, "welcome", n))
	require.NoError(t, f.notifications.NotifyOnce(ctx, "welcome", n))
	assert.Equal(t, []string{"Welcome"}, f.titles(t, "user-1"))

	assert.Equal(t, ErrNotificationNotFound, f.notifications.Delete(ctx, "someone-else", "0b5c2d5e-0000-4000-8000-000000000000"))
}

func TestAccountSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider, err := identity.NewLocal(f.db.Credentials(), "secret", nil)
	require.NoError(t, err)
	accounts := NewAccountService(provider, f.db.Profiles(), f.notifications, nil)

	profile, err := accounts.SignUp(ctx, SignUp{Email: "Ada@Example.com", Password: "long-enough", FirstName: "Ada", LastName: "L"})
	require.NoError(t, err)
	assert.Equal(t, types.RoleStudent, profile.Role)
	assert.Equal(t, "ada@example.com", profile.Email)

	_, err = accounts.SignUp(ctx, SignUp{Email: "ada@example.com", Password: "long-enough", FirstName: "Ada", LastName: "L"})
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 400, svcErr.Status)

	session, signedIn, err := accounts.SignIn(ctx, "ada@example.com", "long-enough")
	require.NoError(t, err)
	require.NotNil(t, signedIn)
	assert.Equal(t, profile.ID, signedIn.ID)
	assert.NotEmpty(t, session.RefreshToken)

	_, _, err = accounts.SignIn(ctx, "ada@example.com", "wrong-password")
	assert.Equal(t, ErrInvalidLogin, err)

	refreshed, err := accounts.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)
	_, err = accounts.Refresh(ctx, session.RefreshToken)
	assert.Equal(t, ErrInvalidRefreshToken, err)

	assert.Equal(t, ErrInvalidResetToken, accounts.ResetPassword(ctx, "garbage", "new-password"))
	require.NoError(t, accounts.ResetPassword(ctx, refreshed.AccessToken, "new-password"))
	_, _, err = accounts.SignIn(ctx, "ada@example.com", "new-password")
	require.NoError(t, err)

	assert.Equal(t, []string{"Welcome to ScholarAid"}, f.titles(t, profile.ID))
}

func TestAdminDashboardAndUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.profile(t, "a@example.com")
	b := f.profile(t, "b@example.com")
	s := f.scholarship(t, types.ScholarshipOpen, nil)
	f.scholarship(t, types.ScholarshipDraft, nil)
	_, err := f.applications.Create(ctx, a.ID, s.ID)
	require.NoError(t, err)
	_, err = f.applications.Create(ctx, b.ID, s.ID)
	require.NoError(t, err)

	dash, err := f.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.Stats.TotalUsers)
	assert.Equal(t, 2, dash.Stats.TotalScholarships)
	assert.Equal(t, 2, dash.Stats.TotalApplications)
	assert.Equal(t, 2, dash.Stats.ApplicationsByStatus[types.ApplicationDraft])
	assert.Equal(t, 0, dash.Stats.ApplicationsByStatus[types.ApplicationApproved])
	require.Len(t, dash.RecentApplications, 2)
	assert.NotNil(t, dash.RecentApplications[0].User)

	users, total, err := f.admin.ListUsers(ctx, types.ProfileFilter{Search: "B@EXAMPLE", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, 1, users[0].Count.Applications)

	_, err = f.admin.SetRole(ctx, "0b5c2d5e-0000-4000-8000-000000000000", types.RoleAdmin)
	assert.Equal(t, ErrUserNotFound, err)
	suspended, err := f.admin.SetStatus(ctx, a.ID, types.ProfileSuspended)
	require.NoError(t, err)
	assert.Equal(t, types.ProfileSuspended, suspended.Status)
}

func TestProfileMeAndOnboarding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	profiles := NewProfileService(f.db.Profiles())
	p := f.profile(t, "a@example.com")
	require.NoError(t, f.notifications.NotifyOnce(ctx, "welcome", types.Notification{UserID: p.ID, Title: "Welcome", Type: types.NotificationInfo, Category: types.CategorySystem}))

	me, err := profiles.Me(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, me.Count)
	assert.Equal(t, 1, me.Count.Notifications)

	onboarded, err := profiles.CompleteOnboarding(ctx, p.ID, Onboarding{
		Nationality: "Ghanaian", ResidingCountry: "Ghana", EducationLevel: types.EducationLevel("MASTERS"),
		Interests: []string{"Engineering"},
	})
	require.NoError(t, err)
	assert.True(t, onboarded.OnboardingCompleted)
	require.NotNil(t, onboarded.Nationality)
	assert.Equal(t, "Ghanaian", *onboarded.Nationality)
	assert.Nil(t, onboarded.DateOfBirth)

	_, err = profiles.Me(ctx, "0b5c2d5e-0000-4000-8000-000000000000")
	assert.Equal(t, ErrProfileNotFound, err)
}
