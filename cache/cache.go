// Package cache implements the query-result cache: TTL-expired entries
// keyed by a deterministic encoding of (query text, options), eagerly
// invalidated when any entity a cached result references is mutated.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is the cache entry lifetime when none is configured.
const DefaultTTL = time.Hour

// entry is immutable once written; a Put replaces it wholesale and
// invalidation deletes it, so concurrent readers never observe a
// half-updated value.
type entry struct {
	value     any
	entityIDs map[string]struct{}
	createdAt time.Time
	hits      int64
}

// Cache is a concurrency-safe in-memory query-result cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// New creates a cache with the given TTL. ttl <= 0 uses DefaultTTL.
func New(ttl time.Duration, logger *zap.SugaredLogger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used by tests to expire entries.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Key derives the deterministic cache key for a query and its encoded
// options. Callers build the option encoding; hashing here keeps keys
// bounded regardless of query length.
func Key(query, encodedOptions string) string {
	sum := sha256.Sum256([]byte(query + "\x00" + encodedOptions))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value and increments its hit counter. Entries
// older than the TTL are treated as misses (lazy expiry) and removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	e.hits++
	return e.value, true
}

// Put stores a result with its creation timestamp and the set of
// entity IDs it references. A Put replaces any prior entry under the
// same key, never mutates it in place.
func (c *Cache) Put(key string, value any, entityIDs []string) {
	refs := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		refs[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		value:     value,
		entityIDs: refs,
		createdAt: c.now(),
	}
}

// InvalidateForEntity removes every cached entry whose result set
// references the entity. Called after each committed upsert so no
// served result reflects stale data for that entity.
func (c *Cache) InvalidateForEntity(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if _, ok := e.entityIDs[entityID]; ok {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 && c.logger != nil {
		c.logger.Debugw("Cache invalidated for entity",
			"entity_id", entityID,
			"entries_removed", removed,
		)
	}
}

// InvalidateAll clears the cache. Administrative reset.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Sweep physically purges expired entries and returns how many were
// removed. Lazy expiry in Get keeps correctness; the sweep keeps the
// map from accumulating dead entries between hits.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.createdAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats reports the live entry count and cumulative hits.
func (c *Cache) Stats() (entries int, hits int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		hits += e.hits
	}
	return len(c.entries), hits
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
