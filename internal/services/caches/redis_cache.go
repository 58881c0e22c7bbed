package caches

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tour-service/internal/services/cache"
	"tour-service/internal/storage"
)

const redisKeyPrefix = "tour-export:"

// RedisCache is the layer shared between service replicas.
type RedisCache struct {
	client *storage.RedisClient
	ttl    time.Duration
	log    zerolog.Logger

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisCache(client *storage.RedisClient, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		log:    logger,
	}
}

func (rc *RedisCache) Name() string {
	return "redis"
}

func (rc *RedisCache) Store(ctx context.Context, key string, data []byte) error {
	if err := rc.client.SetBytes(ctx, redisKeyPrefix+key, data, rc.ttl); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}
	rc.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("redis cache: stored")
	return nil
}

func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.client.GetBytes(ctx, redisKeyPrefix+key)
	if err != nil {
		rc.misses.Add(1)
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if data == nil {
		rc.misses.Add(1)
		return nil, cache.ErrMiss
	}
	rc.hits.Add(1)
	return data, nil
}

func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Delete(ctx, redisKeyPrefix+key)
}

func (rc *RedisCache) Clear(ctx context.Context) error {
	keys, err := rc.client.Keys(ctx, redisKeyPrefix+"*")
	if err != nil {
		return err
	}
	if err := rc.client.Delete(ctx, keys...); err != nil {
		return err
	}

	rc.hits.Store(0)
	rc.misses.Store(0)
	rc.log.Debug().Int("entries", len(keys)).Msg("redis cache: cleared")
	return nil
}

func (rc *RedisCache) GetStats() cache.LayerStats {
	hits, misses := rc.hits.Load(), rc.misses.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	keys, _ := rc.client.Keys(ctx, redisKeyPrefix+"*")

	return cache.LayerStats{
		Name:    rc.Name(),
		Objects: len(keys),
		Hits:    hits,
		Misses:  misses,
		HitRate: cache.HitRate(hits, misses),
	}
}
