package airquality

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Cache defaults.
const (
	DefaultCacheTTL        = 30 * time.Minute
	DefaultCacheMaxEntries = 100
	DefaultEvictionBatch   = 20
)

// keyPrecision is the number of decimals a coordinate is rounded to for
// cache lookups (about 11 m).
const keyPrecision = 4

// CacheKey is a coordinate quantized to 4 decimal places.
type CacheKey struct {
	Lat float64
	Lng float64
}

// KeyFor quantizes a coordinate into a cache key.
func KeyFor(c geo.Coordinate) CacheKey {
	return CacheKey{Lat: geo.Round(c.Lat, keyPrecision), Lng: geo.Round(c.Lng, keyPrecision)}
}

// String formats the key like "28.7041-77.1025".
func (k CacheKey) String() string {
	return fmt.Sprintf("%.4f-%.4f", k.Lat, k.Lng)
}

// Coordinate returns the quantized coordinate.
func (k CacheKey) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: k.Lat, Lng: k.Lng}
}

// FetchFunc loads a reading on a cache miss.
type FetchFunc func(ctx context.Context) (*PollutantReading, error)

// CacheObserver receives cache events, typically to export metrics.
type CacheObserver interface {
	CacheHit(ctx context.Context)
	CacheMiss(ctx context.Context)
	CacheEvicted(ctx context.Context, n int)
}

// CacheConfig holds configuration for the reading cache.
type CacheConfig struct {
	// TTL is how long a reading stays fresh (default: 30 minutes).
	TTL time.Duration

	// MaxEntries triggers eviction when exceeded (default: 100).
	MaxEntries int

	// EvictionBatch is how far below MaxEntries eviction shrinks the cache
	// (default: 20).
	EvictionBatch int

	// Now returns the current time. Tests inject a fake clock.
	Now func() time.Time

	Logger   zerolog.Logger
	Observer CacheObserver
}

type cacheEntry struct {
	reading    *PollutantReading
	insertedAt time.Time
	seq        uint64
}

// GeoDataCache is a TTL cache of readings keyed by quantized coordinate.
// Concurrent misses for one key share a single fetch.
type GeoDataCache struct {
	ttl           time.Duration
	maxEntries    int
	evictionBatch int
	now           func() time.Time
	logger        zerolog.Logger
	observer      CacheObserver

	mu      sync.RWMutex
	entries map[CacheKey]*cacheEntry
	seq     uint64

	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewGeoDataCache creates a new reading cache.
func NewGeoDataCache(cfg CacheConfig) *GeoDataCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}

	batch := cfg.EvictionBatch
	if batch <= 0 {
		batch = DefaultEvictionBatch
	}
	if batch >= maxEntries {
		batch = maxEntries - 1
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &GeoDataCache{
		ttl:           ttl,
		maxEntries:    maxEntries,
		evictionBatch: batch,
		now:           now,
		logger:        cfg.Logger,
		observer:      cfg.Observer,
		entries:       make(map[CacheKey]*cacheEntry),
	}
}

// Get returns the cached reading for key if it is still fresh.
func (c *GeoDataCache) Get(key CacheKey) (*PollutantReading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.insertedAt) >= c.ttl {
		return nil, false
	}
	return e.reading, true
}

// GetOrFetch returns the fresh cached reading for key, or calls fetch and
// caches its result. A cancelled ctx yields ErrCancelled and never populates
// the cache. If the caller sharing another caller's fetch outlives that
// caller's cancellation, it retries with its own context.
func (c *GeoDataCache) GetOrFetch(ctx context.Context, key CacheKey, fetch FetchFunc) (*PollutantReading, error) {
	for {
		if r, ok := c.Get(key); ok {
			c.hits.Add(1)
			if c.observer != nil {
				c.observer.CacheHit(ctx)
			}
			return r, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("cache %s: %w", key, ErrCancelled)
		}

		ch := c.group.DoChan(key.String(), func() (any, error) {
			return c.fill(ctx, key, fetch)
		})

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("cache %s: %w", key, ErrCancelled)
		case res := <-ch:
			if res.Err != nil {
				if errors.Is(res.Err, ErrCancelled) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			return res.Val.(*PollutantReading), nil
		}
	}
}

func (c *GeoDataCache) fill(ctx context.Context, key CacheKey, fetch FetchFunc) (*PollutantReading, error) {
	// Double-check: a previous flight may have just stored the key.
	if r, ok := c.Get(key); ok {
		return r, nil
	}

	c.misses.Add(1)
	if c.observer != nil {
		c.observer.CacheMiss(ctx)
	}

	reading, err := fetch(ctx)
	if err != nil {
		return nil, ClassifyError(ctx, "fetch "+key.String(), err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, ErrCancelled)
	}
	if reading == nil {
		return nil, &NetworkError{Op: "fetch " + key.String(), Err: ErrNoReading}
	}

	c.Set(key, reading)
	return reading, nil
}

// Set stores a reading, evicting the oldest entries if the cache overflows.
func (c *GeoDataCache) Set(key CacheKey, reading *PollutantReading) {
	c.mu.Lock()
	c.seq++
	c.entries[key] = &cacheEntry{reading: reading, insertedAt: c.now(), seq: c.seq}
	evicted := 0
	if len(c.entries) > c.maxEntries {
		evicted = c.evictOldestLocked(len(c.entries) - (c.maxEntries - c.evictionBatch))
	}
	size := len(c.entries)
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		if c.observer != nil {
			c.observer.CacheEvicted(context.Background(), evicted)
		}
		c.logger.Debug().
			Int("evicted", evicted).
			Int("size", size).
			Msg("evicted oldest readings from cache")
	}
}

// evictOldestLocked removes the n entries with the oldest insertion time.
func (c *GeoDataCache) evictOldestLocked(n int) int {
	type aged struct {
		key CacheKey
		at  time.Time
		seq uint64
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, at: e.insertedAt, seq: e.seq})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].at.Equal(all[j].at) {
			return all[i].at.Before(all[j].at)
		}
		return all[i].seq < all[j].seq
	})

	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	return n
}

// PurgeExpired drops every entry past its TTL and returns how many were
// removed.
func (c *GeoDataCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// RunJanitor purges expired entries every interval until ctx is done. A
// non-positive interval uses half the TTL.
func (c *GeoDataCache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.PurgeExpired(); n > 0 {
				c.logger.Debug().Int("purged", n).Int("size", c.Len()).Msg("purged expired readings")
			}
		}
	}
}

// Len returns the number of entries, fresh or not.
func (c *GeoDataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries    int           `json:"entries"`
	MaxEntries int           `json:"maxEntries"`
	TTL        time.Duration `json:"ttl"`
	Hits       int64         `json:"hits"`
	Misses     int64         `json:"misses"`
	Evictions  int64         `json:"evictions"`
}

// Stats returns the current cache counters.
func (c *GeoDataCache) Stats() CacheStats {
	return CacheStats{
		Entries:    c.Len(),
		MaxEntries: c.maxEntries,
		TTL:        c.ttl,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}
