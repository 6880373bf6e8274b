package tenanthost

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relayhq/crmcore/pkg/domain"
)

// Outcome records which terminal result a cache entry holds.
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeNone     Outcome = "none"
	OutcomeNotFound Outcome = "not_found"
	OutcomeInactive Outcome = "inactive"
)

// Entry is a cached terminal resolution outcome. Retryable failures are
// never cached.
type Entry struct {
	Class   Class          `json:"class"`
	Outcome Outcome        `json:"outcome"`
	Tenant  *domain.Tenant `json:"tenant,omitempty"`
}

func newEntry(res Resolution, err error) *Entry {
	entry := &Entry{Class: res.Class, Tenant: res.Tenant}
	switch {
	case err == nil && res.Tenant != nil:
		entry.Outcome = OutcomeResolved
	case err == nil:
		entry.Outcome = OutcomeNone
	case errors.Is(err, domain.ErrTenantInactive):
		entry.Outcome = OutcomeInactive
	default:
		entry.Outcome = OutcomeNotFound
	}
	return entry
}

func (e *Entry) resolution() (Resolution, error) {
	switch e.Outcome {
	case OutcomeResolved:
		return Resolution{Class: e.Class, Tenant: e.Tenant}, nil
	case OutcomeNone:
		return Resolution{Class: e.Class}, nil
	case OutcomeInactive:
		return Resolution{Class: e.Class}, domain.ErrTenantInactive
	default:
		return Resolution{Class: e.Class}, domain.ErrTenantNotFound
	}
}

// Cache stores terminal resolution outcomes keyed by normalized hostname.
// Implementations must be safe for concurrent use and must bound staleness
// to their TTL.
type Cache interface {
	Get(ctx context.Context, host string) (*Entry, bool)
	Set(ctx context.Context, host string, entry *Entry)
	Invalidate(ctx context.Context, host string)
}

const (
	defaultCacheTTL        = 2 * time.Minute
	defaultCacheMaxEntries = 4096
)

// MemoryCache is a bounded in-process TTL cache. When full, an arbitrary
// entry is evicted; entries are small and the bound only guards memory.
type MemoryCache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	entry     *Entry
	expiresAt time.Time
}

// NewMemoryCache creates a memory cache. Zero values select the defaults.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &MemoryCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryCacheEntry),
	}
}

// Get returns the entry for host if present and not expired.
func (c *MemoryCache) Get(_ context.Context, host string) (*Entry, bool) {
	c.mu.RLock()
	cached, ok := c.entries[host]
	c.mu.RUnlock()
	if !ok || time.Now().After(cached.expiresAt) {
		return nil, false
	}
	return cached.entry, true
}

// Set stores an entry for host.
func (c *MemoryCache) Set(_ context.Context, host string, entry *Entry) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[host] = memoryCacheEntry{entry: entry, expiresAt: now.Add(c.ttl)}
}

// Invalidate drops the entry for host.
func (c *MemoryCache) Invalidate(_ context.Context, host string) {
	c.mu.Lock()
	delete(c.entries, host)
	c.mu.Unlock()
}

// evictLocked removes expired entries, or one arbitrary entry if none have
// expired, so the map never exceeds maxEntries.
func (c *MemoryCache) evictLocked(now time.Time) {
	removed := false
	for key, cached := range c.entries {
		if now.After(cached.expiresAt) {
			delete(c.entries, key)
			removed = true
		}
	}
	if removed {
		return
	}
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}
