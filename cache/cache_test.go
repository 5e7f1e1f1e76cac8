package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(ttl time.Duration) *Cache {
	return New(ttl, zap.NewNop().Sugar())
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(time.Hour)

	key := Key("epoxy", "h=false")
	c.Put(key, "result", []string{"P1"})

	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "result", v)
}

func TestMissOnUnknownKey(t *testing.T) {
	c := newTestCache(time.Hour)

	_, ok := c.Get(Key("never stored", ""))
	assert.False(t, ok)
}

func TestKeyDeterministic(t *testing.T) {
	assert.Equal(t, Key("epoxy", "h=true"), Key("epoxy", "h=true"))
	assert.NotEqual(t, Key("epoxy", "h=true"), Key("epoxy", "h=false"))
	assert.NotEqual(t, Key("epoxy", "h=true"), Key("sealant", "h=true"))
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	key := Key("epoxy", "")
	c.Put(key, "result", nil)

	// Within TTL: hit.
	now = now.Add(30 * time.Minute)
	_, ok := c.Get(key)
	assert.True(t, ok)

	// Past TTL: lazy expiry treats it as a miss and removes it.
	now = now.Add(45 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok)

	entries, _ := c.Stats()
	assert.Zero(t, entries)
}

func TestHitCounter(t *testing.T) {
	c := newTestCache(time.Hour)

	key := Key("epoxy", "")
	c.Put(key, "result", nil)
	for i := 0; i < 3; i++ {
		_, ok := c.Get(key)
		require.True(t, ok)
	}

	_, hits := c.Stats()
	assert.Equal(t, int64(3), hits)
}

func TestInvalidateForEntity(t *testing.T) {
	c := newTestCache(time.Hour)

	c.Put(Key("epoxy", ""), "a", []string{"P1", "P2"})
	c.Put(Key("sealant", ""), "b", []string{"P3"})

	c.InvalidateForEntity("P2")

	_, ok := c.Get(Key("epoxy", ""))
	assert.False(t, ok, "entry referencing P2 must be gone")

	_, ok = c.Get(Key("sealant", ""))
	assert.True(t, ok, "unrelated entry must survive")
}

func TestInvalidateAll(t *testing.T) {
	c := newTestCache(time.Hour)

	c.Put(Key("a", ""), 1, nil)
	c.Put(Key("b", ""), 2, nil)
	c.InvalidateAll()

	entries, _ := c.Stats()
	assert.Zero(t, entries)
}

func TestSweepPurgesExpired(t *testing.T) {
	c := newTestCache(time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Put(Key("stale", ""), 1, nil)
	now = now.Add(2 * time.Hour)
	c.Put(Key("fresh", ""), 2, nil)

	removed := c.Sweep()
	assert.Equal(t, 1, removed)

	_, ok := c.Get(Key("fresh", ""))
	assert.True(t, ok)
}

func TestPutReplacesEntry(t *testing.T) {
	c := newTestCache(time.Hour)

	key := Key("epoxy", "")
	c.Put(key, "old", []string{"P1"})
	c.Put(key, "new", []string{"P2"})

	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "new", v)

	// The replacement tracks the new entity set, not the old one.
	c.InvalidateForEntity("P1")
	_, ok = c.Get(key)
	assert.True(t, ok)

	c.InvalidateForEntity("P2")
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := newTestCache(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("query", string(rune('a'+i%8)))
			c.Put(key, i, []string{"P1"})
			c.Get(key)
			if i%10 == 0 {
				c.InvalidateForEntity("P1")
			}
		}(i)
	}
	wg.Wait()
}

func TestDefaultTTL(t *testing.T) {
	c := newTestCache(0)
	assert.Equal(t, DefaultTTL, c.TTL())
}
