package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/scholaraid/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "transcript.pdf", want: "applications/app/doc/transcript.pdf"},
		{filename: "../../etc/passwd", want: "applications/app/doc/passwd"},
		{filename: `C:\Users\me\cv final.docx`, want: "applications/app/doc/cv_final.docx"},
		{filename: "résumé.pdf", want: "applications/app/doc/rsum.pdf"},
		{filename: "..", want: "applications/app/doc/file"},
		{filename: "", want: "applications/app/doc/file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DocumentKey("app", "doc", tt.filename), tt.filename)
	}
}

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "s3"})
	require.Error(t, err)
}

func TestMemoryBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(NewMemoryBackend("docs"))

	require.NoError(t, s.Put(ctx, "a/b", strings.NewReader("hello"), 5, "text/plain"))
	rc, err := s.Get(ctx, "a/b")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete(ctx, "a/b"))
	_, err = s.Get(ctx, "a/b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a/b"), ErrNotFound)
	assert.Equal(t, "docs", s.Bucket())
}
