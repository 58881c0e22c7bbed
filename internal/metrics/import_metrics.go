package metrics

import (
	"fmt"
	"time"
)

// ImportMetrics tracks one panorama archive import.
type ImportMetrics struct {
	StartTime      time.Time `json:"-"`
	TotalLatencyMs float64   `json:"totalLatencyMs"`
	FileCount      int       `json:"fileCount"`
	NodesCreated   int       `json:"nodesCreated"`
	Skipped        []string  `json:"skipped,omitempty"`
	TotalSize      int64     `json:"totalSize"`
}

// NewImportMetrics starts the import clock.
func NewImportMetrics() *ImportMetrics {
	return &ImportMetrics{StartTime: time.Now()}
}

// Finish stops the clock.
func (im *ImportMetrics) Finish() {
	im.TotalLatencyMs = float64(time.Since(im.StartTime).Microseconds()) / 1000.0
}

// GetSummary returns a human-readable summary of the import.
func (im *ImportMetrics) GetSummary() string {
	return fmt.Sprintf(
		"Import Summary: %d files, %d nodes created, %d skipped, Total Size: %.2f MB, Duration: %.2f ms",
		im.FileCount, im.NodesCreated, len(im.Skipped), float64(im.TotalSize)/(1024*1024), im.TotalLatencyMs,
	)
}
