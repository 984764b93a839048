package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryPresenceRepository is the in-process presence store used without Redis or while Redis is down.
type MemoryPresenceRepository struct {
	seen sync.Map // username -> expiry time.Time
	now  func() time.Time
}

func NewMemoryPresenceRepository() *MemoryPresenceRepository {
	return &MemoryPresenceRepository{now: time.Now}
}

func (r *MemoryPresenceRepository) Touch(_ context.Context, username string, ttl time.Duration) error {
	r.seen.Store(strings.ToLower(username), r.now().Add(ttl))
	return nil
}

func (r *MemoryPresenceRepository) Remove(_ context.Context, username string) error {
	r.seen.Delete(strings.ToLower(username))
	return nil
}

func (r *MemoryPresenceRepository) IsOnline(_ context.Context, username string) (bool, error) {
	key := strings.ToLower(username)
	val, ok := r.seen.Load(key)
	if !ok {
		return false, nil
	}
	if !r.now().Before(val.(time.Time)) {
		r.seen.CompareAndDelete(key, val)
		return false, nil
	}
	return true, nil
}

// Online lists unexpired users and drops the expired ones on the way.
func (r *MemoryPresenceRepository) Online(_ context.Context) ([]string, error) {
	now := r.now()
	users := []string{}
	r.seen.Range(func(key, val any) bool {
		if now.Before(val.(time.Time)) {
			users = append(users, key.(string))
		} else {
			r.seen.CompareAndDelete(key, val)
		}
		return true
	})
	sort.Strings(users)
	return users, nil
}
