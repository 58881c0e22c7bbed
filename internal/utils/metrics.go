package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tour-service/internal/models"
)

// Metrics holds the Prometheus metrics for drawing sync and tour export.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	syncTotal       *prometheus.CounterVec
	syncChanges     *prometheus.CounterVec
	syncPhase       *prometheus.HistogramVec
	exportLatency   prometheus.Histogram
	exportWarnings  prometheus.Counter
	exportCacheHits *prometheus.CounterVec
	exportCacheMiss prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		syncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drawing_sync_total",
				Help: "Total number of drawing reconciliations by kind and result",
			},
			[]string{"kind", "result"},
		),
		syncChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drawing_sync_changes_total",
				Help: "Annotations inserted, updated or deleted by reconciliation",
			},
			[]string{"kind", "op"},
		),
		syncPhase: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drawing_sync_phase_latency_ms",
				Help:    "Latency of reconciliation phases in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
			[]string{"phase"},
		),
		exportLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tour_export_latency_ms",
				Help:    "Latency of tour document assembly in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
		),
		exportWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tour_export_missing_references_total",
				Help: "Dangling link or marker targets dropped during export",
			},
		),
		exportCacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_export_cache_hits_total",
				Help: "Export document cache hits per layer",
			},
			[]string{"layer"},
		),
		exportCacheMiss: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tour_export_cache_misses_total",
				Help: "Export document cache misses across all layers",
			},
		),
	}
}

// RecordSync records the outcome of one reconciliation of one kind.
func (m *Metrics) RecordSync(kind models.AnnotationKind, result string, stats models.SyncStats) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(string(kind), result).Inc()
	m.syncChanges.WithLabelValues(string(kind), "insert").Add(float64(stats.Inserted))
	m.syncChanges.WithLabelValues(string(kind), "update").Add(float64(stats.Updated))
	m.syncChanges.WithLabelValues(string(kind), "delete").Add(float64(stats.Deleted))
}

// RecordSyncPhases observes each named phase timing in milliseconds.
func (m *Metrics) RecordSyncPhases(timings map[string]float64) {
	if m == nil {
		return
	}
	for phase, ms := range timings {
		m.syncPhase.WithLabelValues(phase).Observe(ms)
	}
}

// RecordExport records an assembly and the number of warnings it raised.
func (m *Metrics) RecordExport(milliseconds float64, warnings int) {
	if m == nil {
		return
	}
	m.exportLatency.Observe(milliseconds)
	m.exportWarnings.Add(float64(warnings))
}

func (m *Metrics) IncrementExportCacheHit(layer string) {
	if m == nil {
		return
	}
	m.exportCacheHits.WithLabelValues(layer).Inc()
}

func (m *Metrics) IncrementExportCacheMiss() {
	if m == nil {
		return
	}
	m.exportCacheMiss.Inc()
}
