package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"tour-service/internal/models"
	"tour-service/internal/services/cache"
	"tour-service/internal/services/caches"
	"tour-service/internal/utils"
)

// ExportCache keeps assembled tour documents in a stack of cache layers,
// fastest first. A hit in a lower layer is copied into the layers above it.
// Keys carry the tour's generation, so invalidating a tour hides its
// entries in every layer of every replica sharing the generation counter.
type ExportCache struct {
	layers  []cache.CacheLayer
	gens    cache.GenerationCounter
	metrics *utils.Metrics
	log     zerolog.Logger
}

type ExportCacheStats struct {
	Layers []cache.LayerStats `json:"layers"`
}

// NewExportCache builds the cache. A nil gens keeps generations in process.
func NewExportCache(metrics *utils.Metrics, logger zerolog.Logger, gens cache.GenerationCounter, layers ...cache.CacheLayer) *ExportCache {
	if gens == nil {
		gens = caches.NewLocalGenerations()
	}
	return &ExportCache{
		layers:  layers,
		gens:    gens,
		metrics: metrics,
		log:     logger,
	}
}

func exportKey(tourID uuid.UUID, gen uint64) string {
	return fmt.Sprintf("export:%s:%d", tourID, gen)
}

// Generation returns the tour's invalidation counter.
func (ec *ExportCache) Generation(ctx context.Context, tourID uuid.UUID) (uint64, error) {
	gen, err := ec.gens.Current(ctx, tourID.String())
	if err != nil {
		return 0, errors.Wrap(err, "failed to read export generation")
	}
	return gen, nil
}

// Get looks the tour's document of generation gen up layer by layer.
func (ec *ExportCache) Get(ctx context.Context, tourID uuid.UUID, gen uint64) (*models.ExportResult, bool) {
	key := exportKey(tourID, gen)
	for i, layer := range ec.layers {
		data, err := layer.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, cache.ErrMiss) {
				ec.log.Warn().Err(err).Str("layer", layer.Name()).Str("tour_id", tourID.String()).Msg("export cache lookup failed")
			}
			continue
		}

		var result models.ExportResult
		if err := json.Unmarshal(data, &result); err != nil {
			ec.log.Warn().Err(err).Str("layer", layer.Name()).Msg("dropping undecodable export cache entry")
			_ = layer.Delete(ctx, key)
			continue
		}
		for _, upper := range ec.layers[:i] {
			if err := upper.Store(ctx, key, data); err != nil {
				ec.log.Debug().Err(err).Str("layer", upper.Name()).Msg("export cache backfill failed")
			}
		}
		ec.metrics.IncrementExportCacheHit(layer.Name())
		return &result, true
	}
	ec.metrics.IncrementExportCacheMiss()
	return nil, false
}

// Put stores result under generation gen. Nothing is stored when gen is
// already superseded; a racing invalidation leaves an entry under a key
// that is never read again.
func (ec *ExportCache) Put(ctx context.Context, tourID uuid.UUID, gen uint64, result *models.ExportResult) {
	current, err := ec.Generation(ctx, tourID)
	if err != nil || current != gen {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		ec.log.Warn().Err(err).Msg("failed to encode export document")
		return
	}
	key := exportKey(tourID, gen)
	for _, layer := range ec.layers {
		if err := layer.Store(ctx, key, data); err != nil {
			ec.log.Warn().Err(err).Str("layer", layer.Name()).Str("tour_id", tourID.String()).Msg("export cache store failed")
		}
	}
}

// Invalidate bumps the tour's generation and drops the superseded entry
// from the local view of each layer.
func (ec *ExportCache) Invalidate(ctx context.Context, tourID uuid.UUID) {
	gen, err := ec.gens.Bump(ctx, tourID.String())
	if err != nil {
		ec.log.Error().Err(err).Str("tour_id", tourID.String()).Msg("export cache invalidation failed")
		return
	}

	key := exportKey(tourID, gen-1)
	for _, layer := range ec.layers {
		if err := layer.Delete(ctx, key); err != nil {
			ec.log.Warn().Err(err).Str("layer", layer.Name()).Str("tour_id", tourID.String()).Msg("export cache eviction failed")
		}
	}
}

// GetStatistics returns per-layer statistics.
func (ec *ExportCache) GetStatistics() ExportCacheStats {
	stats := ExportCacheStats{Layers: make([]cache.LayerStats, 0, len(ec.layers))}
	for _, layer := range ec.layers {
		stats.Layers = append(stats.Layers, layer.GetStats())
	}
	return stats
}

// ClearAll empties every layer.
func (ec *ExportCache) ClearAll(ctx context.Context) error {
	var failed []string
	for _, layer := range ec.layers {
		if err := layer.Clear(ctx); err != nil {
			failed = append(failed, layer.Name())
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("failed to clear cache layers: %v", failed)
	}
	return nil
}
