// Package cache keeps computed reorder recommendations in Redis between stock changes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/config"
	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	recommendationKeyPrefix = "recommendation:"
	recommendationAllKey    = recommendationKeyPrefix + "all"
	recommendationScanBatch = 100
)

type RecommendationCache interface {
	Get(ctx context.Context, productID int64) (*domain.ReorderRecommendation, bool, error)
	Set(ctx context.Context, rec *domain.ReorderRecommendation) error
	// Invalidate drops the product's entry and the full list, which contains it.
	Invalidate(ctx context.Context, productID int64) error

	GetAll(ctx context.Context) ([]domain.ReorderRecommendation, bool, error)
	SetAll(ctx context.Context, recs []domain.ReorderRecommendation) error
	InvalidateAll(ctx context.Context) error
}

type redisRecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRecommendationCache struct{}

// NewRecommendationCache connects to Redis when caching is enabled and falls
// back to a cache that never hits otherwise.
func NewRecommendationCache(cfg config.CacheConfig) (RecommendationCache, error) {
	if !cfg.Enabled {
		return &noopRecommendationCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return &redisRecommendationCache{client: client, ttl: ttl}, nil
}

// NewRedisRecommendationCache wraps an existing client.
func NewRedisRecommendationCache(client *redis.Client, ttl time.Duration) RecommendationCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisRecommendationCache{client: client, ttl: ttl}
}

func NewNoopRecommendationCache() RecommendationCache {
	return &noopRecommendationCache{}
}

func productKey(productID int64) string {
	return fmt.Sprintf("%sproduct:%d", recommendationKeyPrefix, productID)
}

func (c *redisRecommendationCache) get(ctx context.Context, key string, out any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode recommendation cache: %w", err)
	}
	return true, nil
}

func (c *redisRecommendationCache) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode recommendation cache: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisRecommendationCache) Get(ctx context.Context, productID int64) (*domain.ReorderRecommendation, bool, error) {
	var rec domain.ReorderRecommendation
	ok, err := c.get(ctx, productKey(productID), &rec)
	if !ok || err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (c *redisRecommendationCache) Set(ctx context.Context, rec *domain.ReorderRecommendation) error {
	return c.set(ctx, productKey(rec.ProductID), rec)
}

func (c *redisRecommendationCache) Invalidate(ctx context.Context, productID int64) error {
	if err := c.client.Del(ctx, productKey(productID), recommendationAllKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisRecommendationCache) GetAll(ctx context.Context) ([]domain.ReorderRecommendation, bool, error) {
	var recs []domain.ReorderRecommendation
	ok, err := c.get(ctx, recommendationAllKey, &recs)
	if !ok || err != nil {
		return nil, false, err
	}
	return recs, true, nil
}

func (c *redisRecommendationCache) SetAll(ctx context.Context, recs []domain.ReorderRecommendation) error {
	return c.set(ctx, recommendationAllKey, recs)
}

func (c *redisRecommendationCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, recommendationKeyPrefix, recommendationScanBatch)
}

func (n *noopRecommendationCache) Get(context.Context, int64) (*domain.ReorderRecommendation, bool, error) {
	return nil, false, nil
}

func (n *noopRecommendationCache) Set(context.Context, *domain.ReorderRecommendation) error {
	return nil
}

func (n *noopRecommendationCache) Invalidate(context.Context, int64) error { return nil }

func (n *noopRecommendationCache) GetAll(context.Context) ([]domain.ReorderRecommendation, bool, error) {
	return nil, false, nil
}

func (n *noopRecommendationCache) SetAll(context.Context, []domain.ReorderRecommendation) error {
	return nil
}

func (n *noopRecommendationCache) InvalidateAll(context.Context) error { return nil }
