package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncTimingsAccumulatesPhases(t *testing.T) {
	timings := NewSyncTimings("node-1", "polygon,text")

	for i := 0; i < 2; i++ {
		timings.StartPhase(PhaseApply)
		time.Sleep(2 * time.Millisecond)
		timings.EndPhase(PhaseApply)
	}
	timings.EndPhase(PhaseDiff)

	phases := timings.Finalize()
	assert.GreaterOrEqual(t, phases[PhaseApply], 4.0)
	assert.NotContains(t, phases, PhaseDiff, "ending a phase that never started records nothing")
	assert.GreaterOrEqual(t, phases[PhaseTotal], phases[PhaseApply])
	assert.Equal(t, "polygon,text", timings.Kinds)

	phases[PhaseApply] = -1
	assert.NotEqual(t, -1.0, timings.Timings[PhaseApply], "Finalize returns a copy")
}

func TestImportMetricsSummary(t *testing.T) {
	im := NewImportMetrics()
	im.FileCount = 4
	im.NodesCreated = 3
	im.Skipped = []string{"readme.txt"}
	im.TotalSize = 3 * 1024 * 1024
	im.Finish()

	summary := im.GetSummary()
	assert.Contains(t, summary, "4 files, 3 nodes created, 1 skipped")
	assert.Contains(t, summary, "Total Size: 3.00 MB")
}
