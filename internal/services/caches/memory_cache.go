package caches

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tour-service/internal/services/cache"
)

// MemoryCache is a size-bounded in-process layer with least-recently-used
// eviction and a fixed time to live.
type MemoryCache struct {
	mu          sync.Mutex
	entries     map[string]*MemoryCacheEntry
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	now         func() time.Time
	log         zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64
}

type MemoryCacheEntry struct {
	Data       []byte
	Size       int64
	CreatedAt  time.Time
	LastAccess time.Time
}

// NewMemoryCache creates the layer and starts its expiry sweep. Close stops
// the sweep.
func NewMemoryCache(maxSizeBytes int64, ttl time.Duration, logger zerolog.Logger) *MemoryCache {
	mc := &MemoryCache{
		entries: make(map[string]*MemoryCacheEntry),
		maxSize: maxSizeBytes,
		ttl:     ttl,
		now:     time.Now,
		log:     logger,
		stop:    make(chan struct{}),
	}

	go mc.cleanupExpired(time.Minute)

	return mc
}

func (mc *MemoryCache) Name() string {
	return "memory"
}

func (mc *MemoryCache) Store(_ context.Context, key string, data []byte) error {
	size := int64(len(data))
	if size > mc.maxSize {
		return fmt.Errorf("entry of %d bytes exceeds memory cache size %d", size, mc.maxSize)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.deleteLocked(key)
	for mc.currentSize+size > mc.maxSize {
		if !mc.evictLRULocked() {
			return fmt.Errorf("unable to free space for entry of size %d", size)
		}
	}

	now := mc.now()
	mc.entries[key] = &MemoryCacheEntry{
		Data:       data,
		Size:       size,
		CreatedAt:  now,
		LastAccess: now,
	}
	mc.currentSize += size
	mc.log.Debug().Str("key", key).Int64("bytes", size).Msg("memory cache: stored")
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[key]
	if ok && mc.expired(entry) {
		mc.deleteLocked(key)
		ok = false
	}
	if !ok {
		mc.misses.Add(1)
		return nil, cache.ErrMiss
	}
	entry.LastAccess = mc.now()
	mc.hits.Add(1)
	return entry.Data, nil
}

func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.deleteLocked(key)
	return nil
}

func (mc *MemoryCache) Clear(context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*MemoryCacheEntry)
	mc.currentSize = 0
	mc.hits.Store(0)
	mc.misses.Store(0)
	mc.log.Debug().Msg("memory cache: cleared")
	return nil
}

func (mc *MemoryCache) GetStats() cache.LayerStats {
	mc.mu.Lock()
	objects, size := len(mc.entries), mc.currentSize
	mc.mu.Unlock()

	hits, misses := mc.hits.Load(), mc.misses.Load()
	return cache.LayerStats{
		Name:      mc.Name(),
		Objects:   objects,
		SizeBytes: size,
		Hits:      hits,
		Misses:    misses,
		HitRate:   cache.HitRate(hits, misses),
	}
}

// Close stops the expiry sweep.
func (mc *MemoryCache) Close() {
	mc.stopOnce.Do(func() { close(mc.stop) })
}

func (mc *MemoryCache) expired(entry *MemoryCacheEntry) bool {
	return mc.ttl > 0 && mc.now().Sub(entry.CreatedAt) > mc.ttl
}

func (mc *MemoryCache) deleteLocked(key string) {
	if entry, ok := mc.entries[key]; ok {
		mc.currentSize -= entry.Size
		delete(mc.entries, key)
	}
}

func (mc *MemoryCache) evictLRULocked() bool {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range mc.entries {
		if oldestKey == "" || entry.LastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccess
		}
	}
	if oldestKey == "" {
		return false
	}
	mc.deleteLocked(oldestKey)
	mc.log.Debug().Str("key", oldestKey).Msg("memory cache: evicted")
	return true
}

func (mc *MemoryCache) sweep() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	removed := 0
	for key, entry := range mc.entries {
		if mc.expired(entry) {
			mc.deleteLocked(key)
			removed++
		}
	}
	return removed
}

func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			if n := mc.sweep(); n > 0 {
				mc.log.Debug().Int("entries", n).Msg("memory cache: cleaned up expired entries")
			}
		}
	}
}
