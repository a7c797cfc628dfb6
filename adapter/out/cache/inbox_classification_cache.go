// Package cache implements out.ClassificationCache on Redis and in memory.
package cache

import (
	"context"
	"time"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	pkgcache "inbox_server/pkg/cache"
)

// RedisClassificationCache keeps classifier results in Redis as JSON.
type RedisClassificationCache struct {
	cache *pkgcache.RedisCache
}

var _ out.ClassificationCache = (*RedisClassificationCache)(nil)

func NewRedisClassificationCache(cache *pkgcache.RedisCache) *RedisClassificationCache {
	return &RedisClassificationCache{cache: cache}
}

func (c *RedisClassificationCache) Get(ctx context.Context, key string) (*domain.Classification, bool, error) {
	var result domain.Classification
	found, err := c.cache.GetJSON(ctx, key, &result)
	if err != nil || !found {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *RedisClassificationCache) Set(ctx context.Context, key string, result *domain.Classification, ttl time.Duration) error {
	return c.cache.SetJSON(ctx, key, result, ttl)
}
