package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Cache stores resolved cloud ids.
type Cache interface {
	Get(ctx context.Context, siteURL string) (string, bool, error)
	Put(ctx context.Context, siteURL, cloudID string, ttl time.Duration) error
}

// CachingResolver consults a cache before delegating. Misses are never cached.
type CachingResolver struct {
	next   Resolver
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachingResolver wraps next with cache.
func NewCachingResolver(next Resolver, cache Cache, ttl time.Duration, logger *slog.Logger) *CachingResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingResolver{next: next, cache: cache, ttl: ttl, logger: logger}
}

// CloudID implements Resolver. Cache failures degrade to a direct lookup.
func (r *CachingResolver) CloudID(ctx context.Context, siteURL string) (string, bool, error) {
	if id, ok, err := r.cache.Get(ctx, siteURL); err != nil {
		r.logger.Warn("cloud id cache read failed", slog.String("site_url", siteURL), slog.String("error", err.Error()))
	} else if ok {
		return id, true, nil
	}

	id, ok, err := r.next.CloudID(ctx, siteURL)
	if err != nil || !ok {
		return id, ok, err
	}

	if err := r.cache.Put(ctx, siteURL, id, r.ttl); err != nil {
		r.logger.Warn("cloud id cache write failed", slog.String("site_url", siteURL), slog.String("error", err.Error()))
	}
	return id, true, nil
}

type memoryEntry struct {
	cloudID   string
	expiresAt time.Time
}

// MemoryCache is a process-wide in-memory cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, siteURL string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[siteURL]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.cloudID, true, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, siteURL, cloudID string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s", ttl)
	}
	c.mu.Lock()
	c.entries[siteURL] = memoryEntry{cloudID: cloudID, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
