package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/scholaraid/apiserver/config"
	"github.com/scholaraid/apiserver/internal/identity"
	"github.com/scholaraid/apiserver/internal/pipeline"
	"github.com/scholaraid/apiserver/internal/storage"
	"github.com/scholaraid/apiserver/internal/store/memory"
	"github.com/scholaraid/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
	Meta    *pipeline.Meta  `json:"meta"`
}

type testAPI struct {
	t       *testing.T
	db      *memory.DB
	handler http.Handler
}

func testConfig() config.Config {
	return config.Config{
		Env:          config.EnvTest,
		CORSOrigins:  []string{"http://localhost:3000"},
		AuthProvider: config.AuthProviderLocal,
		JWTSecret:    "test-secret",
		MQ:           config.MQConfig{Backend: config.BackendNone, NotificationsChannel: "notifications"},
		RateLimit:    config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func newTestAPI(t *testing.T, withStorage bool) *testAPI {
	t.Helper()
	cfg := testConfig()
	db := memory.New()

	provider, err := identity.NewLocal(db.Credentials(), cfg.JWTSecret, nil)
	require.NoError(t, err)

	deps := Dependencies{
		Provider:      provider,
		Profiles:      db.Profiles(),
		Scholarships:  db.Scholarships(),
		Applications:  db.Applications(),
		Documents:     db.Documents(),
		Notifications: db.Notifications(),
	}
	if withStorage {
		deps.Storage = storage.NewStorage(storage.NewMemoryBackend("documents"))
	}
	return &testAPI{t: t, db: db, handler: NewHandler(cfg, deps)}
}

func (a *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *testAPI) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

type signInData struct {
	Session struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"session"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

// signUp registers an account and signs it in, returning its profile ID and
// access token.
func (a *testAPI) signUp(email string) (string, string) {
	a.t.Helper()
	rec, env := a.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":     email,
		"password":  "correct-horse",
		"firstName": "Ada",
		"lastName":  "Lovelace",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = a.do(http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	signIn := decode[signInData](a.t, env.Data)
	require.NotEmpty(a.t, signIn.Session.AccessToken)
	return signIn.User.ID, signIn.Session.AccessToken
}

func (a *testAPI) admin(email string, role types.Role) string {
	a.t.Helper()
	id, token := a.signUp(email)
	_, err := a.db.Profiles().SetRole(context.Background(), id, role)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) scholarship(status types.ScholarshipStatus, deadline *time.Time) types.Scholarship {
	a.t.Helper()
	s, err := a.db.Scholarships().Create(context.Background(), types.Scholarship{
		Title:               "Global Excellence Award",
		Provider:            "Example Foundation",
		Country:             "Ghana",
		Level:               "MASTERS",
		Status:              status,
		FieldOfStudy:        "Engineering",
		Type:                types.ScholarshipPrivate,
		ApplicationDeadline: deadline,
	})
	require.NoError(a.t, err)
	return s
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, false)

	rec, env := api.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	health := decode[map[string]any](t, env.Data)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, config.EnvTest, health["environment"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, false)

	rec, env := api.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Route not found: GET /api/nope", env.Error)
}

func TestAccountLifecycle(t *testing.T) {
	api := newTestAPI(t, false)
	profileID, token := api.signUp("ada@example.com")

	rec, env := api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[types.Profile](t, env.Data)
	assert.Equal(t, profileID, me.ID)
	assert.Equal(t, "ada@example.com", me.Email)
	assert.Equal(t, types.RoleStudent, me.Role)

	t.Run("duplicate signup is rejected", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
			"email": "ADA@example.com", "password": "correct-horse", "firstName": "A", "lastName": "L",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, env.Error)
	})

	t.Run("short password", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/auth/signup", "", map[string]any{
			"email": "bob@example.com", "password": "short", "firstName": "B", "lastName": "C",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, string(env.Details), "Password must be at least 8 characters")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/auth/signin", "", map[string]any{
			"email": "ada@example.com", "password": "not-the-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", env.Error)
	})

	t.Run("welcome notification is sent once", func(t *testing.T) {
		rec, env := api.do(http.MethodGet, "/api/notifications", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		items := decode[[]types.Notification](t, env.Data)
		require.Len(t, items, 1)
		assert.Equal(t, "Welcome to ScholarAid", items[0].Title)
		require.NotNil(t, env.Meta.UnreadCount)
		assert.Equal(t, 1, *env.Meta.UnreadCount)
	})

	t.Run("refresh rotates tokens", func(t *testing.T) {
		_, env := api.do(http.MethodPost, "/api/auth/signin", "", map[string]any{
			"email": "ada@example.com", "password": "correct-horse",
		})
		session := decode[signInData](t, env.Data).Session

		rec, _ := api.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": session.RefreshToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec, env = api.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": session.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid refresh token", env.Error)

		rec, env = api.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Refresh token is required", env.Error)
	})

	t.Run("forgot password never reveals accounts", func(t *testing.T) {
		for _, email := range []string{"ada@example.com", "ghost@example.com"} {
			rec, env := api.do(http.MethodPost, "/api/auth/forgot-password", "", map[string]any{"email": email})
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, string(env.Data), "If an account exists")
		}
	})

	t.Run("signout", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/auth/signout", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), "Signed out successfully")
	})
}

func TestAuthorization(t *testing.T) {
	api := newTestAPI(t, false)
	studentID, student := api.signUp("student@example.com")
	admin := api.admin("admin@example.com", types.RoleAdmin)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"missing token", http.MethodGet, "/api/applications", "", nil, http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/applications", "not-a-jwt", nil, http.StatusUnauthorized},
		{"student on admin route", http.MethodGet, "/api/admin/dashboard", student, nil, http.StatusForbidden},
		{"admin on dashboard", http.MethodGet, "/api/admin/dashboard", admin, nil, http.StatusOK},
		{"admin changing roles", http.MethodPatch, "/api/admin/users/" + studentID + "/role", admin, map[string]any{"role": "ADMIN"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := api.do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.status < 400, env.Success)
		})
	}

	t.Run("super admin changes roles", func(t *testing.T) {
		super := api.admin("root@example.com", types.RoleSuperAdmin)
		rec, env := api.do(http.MethodPatch, "/api/admin/users/"+studentID+"/role", super, map[string]any{"role": "ADMIN"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "ADMIN", decode[map[string]any](t, env.Data)["role"])
	})

	t.Run("suspended accounts are refused", func(t *testing.T) {
		id, token := api.signUp("blocked@example.com")
		rec, _ := api.do(http.MethodPatch, "/api/admin/users/"+id+"/status", admin, map[string]any{"status": "SUSPENDED"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec, env := api.do(http.MethodGet, "/api/profiles/me", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Account is suspended", env.Error)
	})
}

func TestScholarshipListing(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.admin("admin@example.com", types.RoleAdmin)
	for range 5 {
		api.scholarship(types.ScholarshipOpen, nil)
	}
	draft := api.scholarship(types.ScholarshipDraft, nil)

	rec, env := api.do(http.MethodGet, "/api/scholarships?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]types.Scholarship](t, env.Data), 2)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 5, env.Meta.Total)
	assert.Equal(t, 3, env.Meta.TotalPages)
	assert.Equal(t, 1, env.Meta.Page)

	rec, env = api.do(http.MethodGet, "/api/scholarships?limit=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, env.Meta.Total)

	rec, env = api.do(http.MethodGet, "/api/scholarships?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = api.do(http.MethodGet, "/api/scholarships/"+draft.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = api.do(http.MethodGet, "/api/scholarships/"+draft.ID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, draft.ID, decode[types.Scholarship](t, env.Data).ID)

	rec, _ = api.do(http.MethodGet, "/api/scholarships/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminScholarshipDeadlineAlias(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.admin("admin@example.com", types.RoleAdmin)

	rec, env := api.do(http.MethodPost, "/api/admin/scholarships", admin, map[string]any{
		"title":        "Legacy Fund",
		"provider":     "Example Ministry",
		"country":      "Kenya",
		"level":        "PHD",
		"fieldOfStudy": "Physics",
		"deadline":     "2030-01-31",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[map[string]any](t, env.Data)
	assert.Equal(t, "DRAFT", created["status"])
	assert.Equal(t, "GOVERNMENT", created["type"])
	assert.Equal(t, created["applicationDeadLine"], created["deadline"])
	assert.Contains(t, created["applicationDeadLine"], "2030-01-31")
}

func TestApplicationFlow(t *testing.T) {
	api := newTestAPI(t, false)
	_, student := api.signUp("student@example.com")
	admin := api.admin("admin@example.com", types.RoleAdmin)

	future := time.Now().Add(30 * 24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)
	open := api.scholarship(types.ScholarshipOpen, &future)
	expired := api.scholarship(types.ScholarshipOpen, &past)
	closed := api.scholarship(types.ScholarshipClosed, nil)

	rec, env := api.do(http.MethodPost, "/api/applications", student, map[string]any{"scholarshipId": open.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	application := decode[types.Application](t, env.Data)
	assert.Equal(t, types.ApplicationDraft, application.Status)

	t.Run("duplicate", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/applications", student, map[string]any{"scholarshipId": open.ID})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "You have already applied to this scholarship", env.Error)
	})

	t.Run("deadline passed", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/applications", student, map[string]any{"scholarshipId": expired.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Application deadline has passed", env.Error)
	})

	t.Run("not accepting", func(t *testing.T) {
		rec, _ := api.do(http.MethodPost, "/api/applications", student, map[string]any{"scholarshipId": closed.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other users cannot see it", func(t *testing.T) {
		_, other := api.signUp("other@example.com")
		rec, _ := api.do(http.MethodGet, "/api/applications/"+application.ID, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec, env = api.do(http.MethodPatch, "/api/applications/"+application.ID, student, map[string]any{
		"essays": []map[string]any{{"title": "Motivation", "content": "Because."}},
		"status": "UNDER_REVIEW",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	submitted := decode[types.Application](t, env.Data)
	assert.Equal(t, types.ApplicationUnderReview, submitted.Status)
	assert.NotNil(t, submitted.SubmittedAt)

	rec, env = api.do(http.MethodDelete, "/api/applications/"+application.ID, student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(http.MethodPatch, "/api/admin/applications/"+application.ID+"/review", admin, map[string]any{
		"status": "APPROVED", "score": 92, "adminNotes": "Strong essay",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decode[types.Application](t, env.Data)
	assert.Equal(t, types.ApplicationApproved, reviewed.Status)
	require.NotNil(t, reviewed.Score)
	assert.Equal(t, 92, *reviewed.Score)

	rec, env = api.do(http.MethodPatch, "/api/applications/"+application.ID, student, map[string]any{"status": "WITHDRAWN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot modify a finalized application", env.Error)

	rec, env = api.do(http.MethodGet, "/api/notifications?category=APPLICATION", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	titles := []string{}
	for _, n := range decode[[]types.Notification](t, env.Data) {
		titles = append(titles, n.Title)
	}
	assert.ElementsMatch(t, []string{"Application Started", "Application Submitted", "Application Approved"}, titles)
}

func TestNotificationsReadAll(t *testing.T) {
	api := newTestAPI(t, false)
	_, student := api.signUp("student@example.com")
	open := api.scholarship(types.ScholarshipOpen, nil)
	rec, _ := api.do(http.MethodPost, "/api/applications", student, map[string]any{"scholarshipId": open.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := api.do(http.MethodPatch, "/api/notifications/read-all", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"markedRead":2}`, string(env.Data))

	rec, env = api.do(http.MethodPatch, "/api/notifications/read-all", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"markedRead":0}`, string(env.Data))

	rec, env = api.do(http.MethodGet, "/api/notifications?unreadOnly=true", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]types.Notification](t, env.Data))
	assert.Equal(t, 0, *env.Meta.UnreadCount)

	rec, _ = api.do(http.MethodPatch, "/api/notifications/read", student, map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileUpdateRoundTrip(t *testing.T) {
	api := newTestAPI(t, false)
	_, token := api.signUp("student@example.com")

	rec, _ := api.do(http.MethodPatch, "/api/profiles/me", token, map[string]any{
		"nationality":    "Ghanaian",
		"educationLevel": "MASTERS",
		"interests":      []string{"Engineering", "Physics"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := api.do(http.MethodPatch, "/api/profiles/me", token, map[string]any{"nationality": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = api.do(http.MethodGet, "/api/profiles/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[types.Profile](t, env.Data)
	assert.Nil(t, profile.Nationality)
	require.NotNil(t, profile.EducationLevel)
	assert.Equal(t, types.EducationLevel("MASTERS"), *profile.EducationLevel)
	assert.Equal(t, []string{"Engineering", "Physics"}, profile.Interests)

	rec, env = api.do(http.MethodPatch, "/api/profiles/onboarding", token, map[string]any{
		"nationality": "Ghanaian", "residingCountry": "Ghana", "educationLevel": "MASTERS", "interests": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Details), "Select at least one interest")
}

func TestDocuments(t *testing.T) {
	api := newTestAPI(t, true)
	_, student := api.signUp("student@example.com")
	open := api.scholarship(types.ScholarshipOpen, nil)
	rec, env := api.do(http.MethodPost, "/api/applications", student, map[string]any{"scholarshipId": open.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	application := decode[types.Application](t, env.Data)
	base := fmt.Sprintf("/api/applications/%s/documents", application.ID)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("name", "Transcript"))
	part, err := form.CreateFormFile("file", "transcript.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("grades: A"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, base, &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec, env = api.send(req, student)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[types.Document](t, env.Data)
	assert.Equal(t, "Transcript", doc.Name)
	assert.EqualValues(t, len("grades: A"), doc.SizeBytes)

	rec, env = api.do(http.MethodGet, base, student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Document](t, env.Data), 1)

	rec, _ = api.send(httptest.NewRequest(http.MethodGet, base+"/"+doc.ID+"/content", nil), student)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "grades: A", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Transcript")

	_, other := api.signUp("other@example.com")
	rec, _ = api.send(httptest.NewRequest(http.MethodGet, base+"/"+doc.ID+"/content", nil), other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = api.do(http.MethodDelete, base+"/"+doc.ID, student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Document deleted")

	rec, env = api.do(http.MethodGet, base, student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]types.Document](t, env.Data))
}

func TestDocumentsWithoutStorage(t *testing.T) {
	api := newTestAPI(t, false)
	_, student := api.signUp("student@example.com")
	open := api.scholarship(types.ScholarshipOpen, nil)
	_, env := api.do(http.MethodPost, "/api/applications", student, map[string]any{"scholarshipId": open.ID})
	application := decode[types.Application](t, env.Data)

	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+application.ID+"/documents", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec, env := api.send(req, student)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Document storage is not configured", env.Error)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:2222").Code)

	rec := call("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many requests")

	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1111").Code)
}

func TestNewProvider(t *testing.T) {
	cfg := testConfig()
	provider, err := NewProvider(cfg, memory.New().Credentials(), nil)
	require.NoError(t, err)
	assert.IsType(t, &identity.Local{}, provider)

	cfg.AuthProvider = config.AuthProviderSupabase
	cfg.Supabase = config.SupabaseConfig{URL: "https://example.supabase.co", AnonKey: "anon", ServiceRoleKey: "service"}
	provider, err = NewProvider(cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &identity.Supabase{}, provider)

	cfg.AuthProvider = "ldap"
	_, err = NewProvider(cfg, nil, nil)
	assert.Error(t, err)
}
