package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/pkgforge/registry/pkg/observability"
)

// defaultTTL is the discovery-result cache lifetime.
const defaultTTL = time.Hour

// FetchFunc calls out to the external discovery provider for one cache key
// (e.g. "search:q=foo&limit=20").
type FetchFunc func(ctx context.Context) ([]DiscoveredPackage, error)

// Cache is a two-tier, read-through cache of discovery results: an
// in-process LRU (L1) in front of a shared Redis cache (L2), matching
// SPEC_FULL.md's DOMAIN STACK assignment of hashicorp/golang-lru/v2 and
// go-redis/redis/v8 to this component. Concurrent cold misses for the same
// key are coalesced with singleflight so a traffic spike against an unknown
// query issues exactly one upstream call.
type Cache struct {
	l1     *lru.Cache[string, cachedEntry]
	l2     *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *observability.Logger
}

// NewCache builds a cache with an L1 sized to l1Size entries and backed by
// the given Redis client (nil disables L2 — L1-only, useful for tests or a
// single-replica deployment).
func NewCache(l1Size int, redisClient *redis.Client, logger *observability.Logger) (*Cache, error) {
	if l1Size <= 0 {
		l1Size = 256
	}
	l1, err := lru.New[string, cachedEntry](l1Size)
	if err != nil {
		return nil, fmt.Errorf("discovery: create l1 cache: %w", err)
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Cache{l1: l1, l2: redisClient, ttl: defaultTTL, logger: logger}, nil
}

// Get returns cached results for key if fresh, otherwise calls fetch
// (coalesced across concurrent callers) and caches the outcome. On a fetch
// error: a stale cached value is served if one exists (stale-while-error);
// otherwise an empty, non-error result is returned so the UI stays live
// even when the upstream discovery provider is down.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) ([]DiscoveredPackage, error) {
	if entry, ok := c.l1.Get(key); ok && entry.fresh(c.ttl) {
		return entry.Packages, nil
	}

	if l2Entry, ok := c.getL2(ctx, key); ok {
		c.l1.Add(key, l2Entry)
		if l2Entry.fresh(c.ttl) {
			return l2Entry.Packages, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		packages, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		entry := cachedEntry{Packages: packages, FetchedAt: time.Now().UTC()}
		c.l1.Add(key, entry)
		c.setL2(ctx, key, entry)
		return entry, nil
	})
	if err != nil {
		c.logger.WithError(err).Warnf("discovery: upstream fetch failed for %q", key)
		if stale, ok := c.l1.Get(key); ok {
			return stale.Packages, nil
		}
		return []DiscoveredPackage{}, nil
	}
	return v.(cachedEntry).Packages, nil
}

func (c *Cache) getL2(ctx context.Context, key string) (cachedEntry, bool) {
	if c.l2 == nil {
		return cachedEntry{}, false
	}
	raw, err := c.l2.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		return cachedEntry{}, false
	}
	var entry cachedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return cachedEntry{}, false
	}
	return entry, true
}

func (c *Cache) setL2(ctx context.Context, key string, entry cachedEntry) {
	if c.l2 == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.l2.Set(ctx, redisKey(key), data, 2*c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warnf("discovery: l2 cache write failed for %q", key)
	}
}

func redisKey(key string) string { return "discovery:" + key }
