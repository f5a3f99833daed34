package handlers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/scholaraid/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalDeadline(t *testing.T) {
	jan := types.Some(types.Date{Time: time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)})
	feb := types.Some(types.Date{Time: time.Date(2030, 2, 28, 0, 0, 0, 0, time.UTC)})

	got := canonicalDeadline(jan, feb)
	require.True(t, got.Valid)
	assert.Equal(t, jan.Value.Time, got.Value)

	got = canonicalDeadline(types.Optional[types.Date]{}, feb)
	require.True(t, got.Valid)
	assert.Equal(t, feb.Value.Time, got.Value)

	// an explicit null on the canonical field clears the deadline even when
	// the legacy field carries a date
	got = canonicalDeadline(types.Null[types.Date](), feb)
	assert.True(t, got.Set)
	assert.False(t, got.Valid)

	got = canonicalDeadline(types.Optional[types.Date]{}, types.Optional[types.Date]{})
	assert.False(t, got.Set)
}

func TestReadFileLimited(t *testing.T) {
	data, err := readFileLimited(strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = readFileLimited(bytes.NewReader(make([]byte, 6)), 5)
	assert.EqualError(t, err, "File exceeds the 10 MB limit")
}

func TestScholarshipQueryFilter(t *testing.T) {
	var q scholarshipQuery
	q.Defaults()
	q.Page = 3
	q.Limit = 10

	f := q.filter()
	assert.Equal(t, types.SortByCreatedAt, f.SortBy)
	assert.True(t, f.Descending)
	assert.Equal(t, 20, f.Offset)
	assert.Equal(t, 10, f.Limit)

	q.SortOrder = "asc"
	assert.False(t, q.filter().Descending)
}

func TestCreateScholarshipDefaults(t *testing.T) {
	var req createScholarshipRequest
	req.Defaults()
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "Fund", "provider": "P", "country": "C", "level": "PHD",
		"fieldOfStudy": "Maths", "applicationDeadLine": "2031-05-01T12:00:00Z"
	}`), &req))

	s := req.scholarship("admin-1")
	assert.Equal(t, types.ScholarshipDraft, s.Status)
	assert.Equal(t, types.ScholarshipGovernment, s.Type)
	require.NotNil(t, s.ApplicationDeadline)
	assert.Equal(t, time.Date(2031, 5, 1, 12, 0, 0, 0, time.UTC), s.ApplicationDeadline.UTC())
	require.NotNil(t, s.CreatedByID)
	assert.Equal(t, "admin-1", *s.CreatedByID)
}

func TestUpdateProfileChanges(t *testing.T) {
	var req updateProfileRequest
	require.NoError(t, json.Unmarshal([]byte(`{"educationLevel":"PHD","avatarUrl":null}`), &req))

	changes := req.changes()
	require.True(t, changes.EducationLevel.Valid)
	assert.Equal(t, types.EducationLevel("PHD"), changes.EducationLevel.Value)
	assert.True(t, changes.AvatarURL.Set)
	assert.False(t, changes.AvatarURL.Valid)
	assert.False(t, changes.Nationality.Set)
	assert.Nil(t, changes.FirstName)
}
