package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalUnmarshal(t *testing.T) {
	var body struct {
		Bio   Optional[string] `json:"bio"`
		Phone Optional[string] `json:"phone"`
		Score Optional[int]    `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"bio":null,"score":92}`), &body))

	assert.True(t, body.Bio.Set)
	assert.False(t, body.Bio.Valid)
	assert.Nil(t, body.Bio.Ptr())

	assert.False(t, body.Phone.Set)
	assert.Nil(t, body.Phone.ValidationValue())

	assert.Equal(t, Some(92), body.Score)
	require.NotNil(t, body.Score.Ptr())
	assert.Equal(t, 92, *body.Score.Ptr())

	assert.Error(t, json.Unmarshal([]byte(`{"score":"high"}`), &body))
}

func TestOptionalMarshal(t *testing.T) {
	raw, err := json.Marshal(map[string]Optional[string]{"a": Some("x"), "b": Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":null}`, string(raw))
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2030-06-15", time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"2030-06-15T10:30", time.Date(2030, 6, 15, 10, 30, 0, 0, time.UTC)},
		{"2030-06-15T10:30:05", time.Date(2030, 6, 15, 10, 30, 5, 0, time.UTC)},
		{"2030-06-15T10:30:05+02:00", time.Date(2030, 6, 15, 8, 30, 5, 0, time.UTC)},
		{" 2030-06-15T10:30:05.5Z ", time.Date(2030, 6, 15, 10, 30, 5, 500000000, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s parsed as %s", tc.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := ParseDate("15/06/2030")
	assert.Error(t, err)
}

func TestDateDecoding(t *testing.T) {
	var body struct {
		Deadline Optional[Date] `json:"deadline"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2031-01-02"}`), &body))
	converted := OptionalTime(body.Deadline)
	assert.True(t, converted.Valid)
	assert.Equal(t, 2031, converted.Value.Year())

	assert.Error(t, json.Unmarshal([]byte(`{"deadline":20310102}`), &body))

	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2031-03-04")))
	assert.Equal(t, time.March, d.Month())
}
