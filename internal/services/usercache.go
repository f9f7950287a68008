package services

import (
	"context"
	"sync"
)

// UserCache memoizes email-to-user-id lookups in front of the user service.
// Invalidation is explicit: write paths that change a user's email call
// Invalidate for that address instead of relying on convention.
type UserCache struct {
	users UserService

	mu      sync.RWMutex
	byEmail map[string]int64
}

func NewUserCache(users UserService) *UserCache {
	return &UserCache{
		users:   users,
		byEmail: make(map[string]int64),
	}
}

// GetUserIDByEmail returns the cached id when present, otherwise asks the
// user service and caches the answer. Lookup failures are not cached.
func (c *UserCache) GetUserIDByEmail(ctx context.Context, email string) (int64, error) {
	c.mu.RLock()
	id, ok := c.byEmail[email]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := c.users.GetUserIDByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.byEmail[email] = id
	c.mu.Unlock()
	return id, nil
}

// Invalidate drops the cached entry for an email address.
func (c *UserCache) Invalidate(email string) {
	c.mu.Lock()
	delete(c.byEmail, email)
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (c *UserCache) InvalidateAll() {
	c.mu.Lock()
	c.byEmail = make(map[string]int64)
	c.mu.Unlock()
}
