package cache

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
)

// MemoryProfileCache is the in-process fallback used when redis is not
// configured.
type MemoryProfileCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry
}

type entry struct {
	val user.Public
	exp time.Time
}

func NewMemoryProfileCache(ttl time.Duration) *MemoryProfileCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &MemoryProfileCache{
		ttl: ttl,
		m:   make(map[string]entry),
	}
}

func (c *MemoryProfileCache) Get(_ context.Context, id string) (*user.Public, error) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[id]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, id)
		c.mu.Unlock()
		return nil, nil
	}

	p := e.val
	return &p, nil
}

func (c *MemoryProfileCache) Set(_ context.Context, p user.Public) error {
	c.mu.Lock()
	c.m[p.ID] = entry{val: p, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryProfileCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.m, id)
	c.mu.Unlock()
	return nil
}
