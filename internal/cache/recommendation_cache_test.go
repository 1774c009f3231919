package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andresuchdata/eisen-inventory/internal/config"
	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (RecommendationCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRecommendationCache(client, time.Minute), mr
}

func TestRecommendationCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	_, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	rec := &domain.ReorderRecommendation{ProductID: 1, SKU: "A", ReorderPoint: 40, NeedsReorder: true}
	require.NoError(t, c.Set(ctx, rec))
	require.NoError(t, c.SetAll(ctx, []domain.ReorderRecommendation{*rec}))

	got, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)

	all, ok, err := c.GetAll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, all, 1)

	require.Equal(t, time.Minute, mr.TTL(productKey(1)))

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecommendationCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, &domain.ReorderRecommendation{ProductID: 1}))
	require.NoError(t, c.Set(ctx, &domain.ReorderRecommendation{ProductID: 2}))
	require.NoError(t, c.SetAll(ctx, []domain.ReorderRecommendation{{ProductID: 1}, {ProductID: 2}}))

	require.NoError(t, c.Invalidate(ctx, 1))
	_, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = c.GetAll(ctx)
	require.NoError(t, err)
	require.False(t, ok, "the list holds product 1 too")
	_, ok, err = c.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.InvalidateAll(ctx))
	_, ok, err = c.Get(ctx, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c, err := NewRecommendationCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, &domain.ReorderRecommendation{ProductID: 1}))
	_, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@localhost:6379/3"})
	require.NoError(t, err)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 3, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "://bad"})
	require.Error(t, err)

	require.Equal(t, defaultCacheTTL, ttlFromSeconds(0))
	require.Equal(t, 30*time.Second, ttlFromSeconds(30))
}
