package memory

import (
	"context"
	"sort"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
)

type Documents struct {
	db *DB
}

func (r *Documents) ListByApplication(ctx context.Context, applicationID string) ([]types.Document, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	docs := make([]types.Document, 0)
	for _, d := range r.db.documents {
		if d.ApplicationID == applicationID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

func (r *Documents) Get(ctx context.Context, id string) (types.Document, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.documents[id]
	if !ok {
		return types.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (r *Documents) Create(ctx context.Context, d types.Document) (types.Document, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if d.ID == "" {
		d.ID = newID()
	}
	if _, exists := r.db.documents[d.ID]; exists {
		return types.Document{}, store.ErrConflict
	}
	d.CreatedAt = r.db.tick()
	r.db.documents[d.ID] = d
	return d, nil
}

func (r *Documents) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.documents[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.documents, id)
	return nil
}
