package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewCache(16, client, nil)
	require.NoError(t, err)
	return c, mr
}

func samplePackages() []DiscoveredPackage {
	return []DiscoveredPackage{{Name: "widget", Stars: 42}}
}

func TestCacheMissCallsFetchAndPopulatesL1AndL2(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls int32

	got, err := c.Get(ctx, "search:q=widget", func(ctx context.Context) ([]DiscoveredPackage, error) {
		atomic.AddInt32(&calls, 1)
		return samplePackages(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, samplePackages(), got)
	assert.EqualValues(t, 1, calls)
	assert.True(t, mr.Exists("discovery:search:q=widget"))
}

func TestCacheHitSkipsFetch(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var calls int32
	fetch := func(ctx context.Context) ([]DiscoveredPackage, error) {
		atomic.AddInt32(&calls, 1)
		return samplePackages(), nil
	}

	_, err := c.Get(ctx, "k", fetch)
	require.NoError(t, err)
	_, err = c.Get(ctx, "k", fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls)
}

func TestCacheServesStaleOnUpstreamError(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "k", func(ctx context.Context) ([]DiscoveredPackage, error) {
		return samplePackages(), nil
	})
	require.NoError(t, err)

	// force staleness so the next Get attempts a refetch
	entry, _ := c.l1.Get("k")
	entry.FetchedAt = entry.FetchedAt.Add(-2 * defaultTTL)
	c.l1.Add("k", entry)

	got, err := c.Get(ctx, "k", func(ctx context.Context) ([]DiscoveredPackage, error) {
		return nil, errors.New("upstream unavailable")
	})
	require.NoError(t, err, "stale-while-error must not surface the upstream error")
	assert.Equal(t, samplePackages(), got)
}

func TestCacheReturnsEmptyNotErrorOnColdMissUpstreamFailure(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	got, err := c.Get(ctx, "cold-key", func(ctx context.Context) ([]DiscoveredPackage, error) {
		return nil, errors.New("upstream unavailable")
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCacheReadsFromL2WhenL1Empty(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "k", func(ctx context.Context) ([]DiscoveredPackage, error) {
		return samplePackages(), nil
	})
	require.NoError(t, err)

	c.l1.Remove("k")
	var calls int32
	got, err := c.Get(ctx, "k", func(ctx context.Context) ([]DiscoveredPackage, error) {
		atomic.AddInt32(&calls, 1)
		return samplePackages(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, samplePackages(), got)
	assert.Zero(t, calls, "l2 hit should avoid a fetch")
}
