package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Object is a stored body and its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryBackend keeps objects in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]Object
}

func NewMemoryBackend(bucket string) *MemoryBackend {
	return &MemoryBackend{bucket: bucket, objects: make(map[string]Object)}
}

func (m *MemoryBackend) EnsureBucket(context.Context) error { return nil }

func (m *MemoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryBackend) Bucket() string { return m.bucket }
func (m *MemoryBackend) Close() error   { return nil }

// Keys lists stored object keys.
func (m *MemoryBackend) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
