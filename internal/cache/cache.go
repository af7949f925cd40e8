// Package cache holds the bounded in-process caches: one for full catalog
// snapshots, one for per-series episode lists. Entries expire lazily against
// a TTL; capacity pressure evicts in insertion order.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/snapetech/xtreamcat/internal/catalog"
	"github.com/snapetech/xtreamcat/internal/metrics"
)

// Key derives the cache key for a backend account. Content-addressed: two
// client tokens pointing at the same backend and account share one slot no
// matter how the tokens were issued.
func Key(baseURL, username string) string {
	sum := sha256.Sum256([]byte(baseURL + "\x00" + username))
	return hex.EncodeToString(sum[:])
}

type snapshotEntry struct {
	snap       *catalog.Snapshot
	index      *catalog.Index
	insertedAt time.Time
}

// SnapshotCache maps cache keys to immutable catalog snapshots and their
// search indexes. Eviction is insertion-order, not access-order: a hot key
// can be evicted under capacity pressure. That is a deliberate
// simplification; the TTL dominates entry lifetime in practice.
type SnapshotCache struct {
	mu      sync.Mutex
	entries map[string]snapshotEntry
	order   []string // insertion order, oldest first
	ttl     time.Duration
	max     int
	group   singleflight.Group
	now     func() time.Time
}

// NewSnapshotCache returns a cache holding at most max entries for at most
// ttl each.
func NewSnapshotCache(ttl time.Duration, max int) *SnapshotCache {
	if max < 1 {
		max = 1
	}
	return &SnapshotCache{
		entries: make(map[string]snapshotEntry),
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// Get returns the cached index for key if it is younger than the TTL.
// Expired entries count as absent; they are removed on the next Set or
// eviction sweep, not here (lazy expiry, no background sweeper).
func (c *SnapshotCache) Get(key string) (*catalog.Index, bool) {
	index, ok := c.lookup(key)
	if ok {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	return index, ok
}

// lookup is Get without the hit/miss accounting, for internal re-checks
// that would otherwise count the same miss twice.
func (c *SnapshotCache) lookup(key string) (*catalog.Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.insertedAt) >= c.ttl {
		return nil, false
	}
	return e.index, true
}

// Set inserts or overwrites the snapshot for key, building its index, and
// evicts the oldest-inserted entries while over capacity.
func (c *SnapshotCache) Set(key string, snap *catalog.Snapshot) *catalog.Index {
	index := catalog.NewIndex(snap)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.removeFromOrder(key)
	}
	c.entries[key] = snapshotEntry{snap: snap, index: index, insertedAt: c.now()}
	c.order = append(c.order, key)
	for len(c.entries) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		metrics.CacheEvictions.Inc()
	}
	return index
}

// GetOrLoad returns the cached index for key, or runs load to build it.
// Concurrent misses for the same key share one in-flight load; late
// arrivals wait for its result instead of issuing duplicate backend calls.
// A failed load caches nothing.
func (c *SnapshotCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (*catalog.Snapshot, error)) (*catalog.Index, error) {
	if index, ok := c.Get(key); ok {
		return index, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have finished a
		// load between our Get and Do. The outer Get already counted this
		// miss, so skip the accounting here.
		if index, ok := c.lookup(key); ok {
			return index, nil
		}
		snap, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return c.Set(key, snap), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.Index), nil
}

// Len reports the current entry count, expired entries included.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetClock overrides the time source. Tests only.
func (c *SnapshotCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *SnapshotCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

type episodeEntry struct {
	episodes   []catalog.Episode
	insertedAt time.Time
}

// EpisodeCache caches per-series episode lists under the same TTL discipline
// as the snapshot cache. Keyed by cache key + series id.
type EpisodeCache struct {
	mu      sync.Mutex
	entries map[string]episodeEntry
	order   []string
	ttl     time.Duration
	max     int
	group   singleflight.Group
	now     func() time.Time
}

// NewEpisodeCache returns an episode cache holding at most max series for at
// most ttl each.
func NewEpisodeCache(ttl time.Duration, max int) *EpisodeCache {
	if max < 1 {
		max = 1
	}
	return &EpisodeCache{
		entries: make(map[string]episodeEntry),
		ttl:     ttl,
		max:     max,
		now:     time.Now,
	}
}

// GetOrLoad returns the cached episode list for key or fetches it, sharing
// one in-flight fetch per key. Failed fetches cache nothing.
func (c *EpisodeCache) GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]catalog.Episode, error)) ([]catalog.Episode, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.insertedAt) < c.ttl {
		c.mu.Unlock()
		return e.episodes, nil
	}
	c.mu.Unlock()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		eps, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(key, eps)
		return eps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]catalog.Episode), nil
}

func (c *EpisodeCache) set(key string, eps []catalog.Episode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.entries[key] = episodeEntry{episodes: eps, insertedAt: c.now()}
	c.order = append(c.order, key)
	for len(c.entries) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// SetClock overrides the time source. Tests only.
func (c *EpisodeCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
