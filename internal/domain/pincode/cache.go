package pincode

import (
	"context"
	"sync"
	"time"
)

// Cache is a process-local TTL cache for resolved postal codes. Reads
// share the lock, so concurrent lookups of hot codes do not contend;
// writes are serialized. Expired entries are dropped on read and by
// the optional background sweeper.
type Cache struct {
	mu   sync.RWMutex
	held map[string]cached
	ttl  time.Duration
}

// cached pairs an immutable resolution with its expiry.
type cached struct {
	res     *Resolution
	expires time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{held: make(map[string]cached), ttl: ttl}
}

// cacheKey scopes entries by country so a future non-IN dataset cannot
// collide with Indian codes.
func cacheKey(code, country string) string {
	return country + ":" + code
}

// Get returns the resolution cached under (code, country), or nil.
func (c *Cache) Get(code, country string) *Resolution {
	key := cacheKey(code, country)
	c.mu.RLock()
	e, ok := c.held[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if time.Now().After(e.expires) {
		c.evict(key)
		return nil
	}
	return e.res
}

// Set stores res under (code, country) for the configured TTL.
func (c *Cache) Set(code, country string, res *Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held[cacheKey(code, country)] = cached{res: res, expires: time.Now().Add(c.ttl)}
}

// Len counts held entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.held)
}

func (c *Cache) evict(key string) {
	c.mu.Lock()
	delete(c.held, key)
	c.mu.Unlock()
}

// StartCleanup launches a sweeper that drops expired entries every
// interval until ctx is cancelled.
func (c *Cache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.sweep(now)
			}
		}
	}()
}

func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.held {
		if now.After(e.expires) {
			delete(c.held, key)
		}
	}
}
