package caches

import (
	"context"
	"fmt"
	"sync"

	"tour-service/internal/storage"
)

// LocalGenerations counts invalidations in process. It is enough for a
// single replica.
type LocalGenerations struct {
	mu   sync.Mutex
	gens map[string]uint64
}

func NewLocalGenerations() *LocalGenerations {
	return &LocalGenerations{gens: make(map[string]uint64)}
}

func (g *LocalGenerations) Current(_ context.Context, key string) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[key], nil
}

func (g *LocalGenerations) Bump(_ context.Context, key string) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gens[key]++
	return g.gens[key], nil
}

const redisGenerationPrefix = "tour-export-gen:"

// RedisGenerations keeps the counters in Redis so that every replica sees
// every invalidation.
type RedisGenerations struct {
	client *storage.RedisClient
}

func NewRedisGenerations(client *storage.RedisClient) *RedisGenerations {
	return &RedisGenerations{client: client}
}

func (g *RedisGenerations) Current(ctx context.Context, key string) (uint64, error) {
	n, err := g.client.GetInt64(ctx, redisGenerationPrefix+key)
	if err != nil {
		return 0, fmt.Errorf("failed to read generation: %w", err)
	}
	return uint64(n), nil
}

func (g *RedisGenerations) Bump(ctx context.Context, key string) (uint64, error) {
	n, err := g.client.Incr(ctx, redisGenerationPrefix+key)
	if err != nil {
		return 0, fmt.Errorf("failed to bump generation: %w", err)
	}
	return uint64(n), nil
}
