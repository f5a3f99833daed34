// Package memory provides in-process implementations of the repositories in
// package store. Rows live in maps guarded by one mutex so that joins and
// counts observe a consistent snapshot.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scholaraid/apiserver/types"
)

// DB holds every table.
type DB struct {
	mu            sync.RWMutex
	profiles      map[string]types.Profile
	scholarships  map[string]types.Scholarship
	applications  map[string]types.Application
	notifications map[string]types.Notification
	documents     map[string]types.Document
	credentials   map[string]types.Credential
	refreshTokens map[string]refreshToken

	// seq orders rows created within the same clock tick.
	seq int64
	now func() time.Time
}

type refreshToken struct {
	userID    string
	expiresAt time.Time
}

func New() *DB {
	return &DB{
		profiles:      make(map[string]types.Profile),
		scholarships:  make(map[string]types.Scholarship),
		applications:  make(map[string]types.Application),
		notifications: make(map[string]types.Notification),
		documents:     make(map[string]types.Document),
		credentials:   make(map[string]types.Credential),
		refreshTokens: make(map[string]refreshToken),
		now:           time.Now,
	}
}

func (db *DB) Profiles() *Profiles           { return &Profiles{db: db} }
func (db *DB) Scholarships() *Scholarships   { return &Scholarships{db: db} }
func (db *DB) Applications() *Applications   { return &Applications{db: db} }
func (db *DB) Notifications() *Notifications { return &Notifications{db: db} }
func (db *DB) Documents() *Documents         { return &Documents{db: db} }
func (db *DB) Credentials() *Credentials     { return &Credentials{db: db} }

// tick returns a strictly increasing timestamp. Callers hold mu.
func (db *DB) tick() time.Time {
	db.seq++
	return db.now().UTC().Add(time.Duration(db.seq) * time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func applyOptional[T any](dst **T, o types.Optional[T]) {
	if o.Set {
		*dst = o.Ptr()
	}
}

func applyPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
