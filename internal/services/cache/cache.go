package cache

import (
	"context"

	"github.com/pkg/errors"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

// CacheLayer is one tier of the export document cache.
type CacheLayer interface {
	Name() string
	Store(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	GetStats() LayerStats
}

// GenerationCounter counts invalidations per key. Entries are stored under
// the generation read before they were built, so a bump made by any replica
// hides them from every replica.
type GenerationCounter interface {
	Current(ctx context.Context, key string) (uint64, error)
	Bump(ctx context.Context, key string) (uint64, error)
}

type LayerStats struct {
	Name      string  `json:"name"`
	Objects   int     `json:"objects"`
	SizeBytes int64   `json:"sizeBytes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
}

// HitRate returns hits as a percentage of all lookups.
func HitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
