package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
)

type Notifications struct {
	db *DB
}

func (r *Notifications) match(filter types.NotificationFilter) []types.Notification {
	out := make([]types.Notification, 0)
	for _, n := range r.db.notifications {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		if filter.Category != "" && n.Category != filter.Category {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (r *Notifications) List(ctx context.Context, filter types.NotificationFilter) ([]types.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	matched := r.match(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return append([]types.Notification{}, page(matched, filter.Offset, filter.Limit)...), nil
}

func (r *Notifications) Count(ctx context.Context, filter types.NotificationFilter) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.match(filter)), nil
}

func (r *Notifications) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n.ID = newID()
	n.IsRead = false
	n.CreatedAt = r.db.tick()
	r.db.notifications[n.ID] = n
	return n, nil
}

func (r *Notifications) HasKind(ctx context.Context, userID, kind string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, n := range r.db.notifications {
		if n.UserID != userID || len(n.Metadata) == 0 {
			continue
		}
		var meta struct {
			Kind string `json:"kind"`
		}
		if json.Unmarshal(n.Metadata, &meta) == nil && meta.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (r *Notifications) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	marked := 0
	for _, id := range ids {
		n, ok := r.db.notifications[id]
		if !ok || n.UserID != userID {
			continue
		}
		n.IsRead = true
		r.db.notifications[id] = n
		marked++
	}
	return marked, nil
}

func (r *Notifications) MarkAllRead(ctx context.Context, userID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	marked := 0
	for id, n := range r.db.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			r.db.notifications[id] = n
			marked++
		}
	}
	return marked, nil
}

func (r *Notifications) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok || n.DeliveredAt != nil {
		return nil
	}
	n.DeliveredAt = &at
	r.db.notifications[id] = n
	return nil
}

func (r *Notifications) Delete(ctx context.Context, userID, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n, ok := r.db.notifications[id]
	if !ok || n.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.db.notifications, id)
	return nil
}
