package metrics

import (
	"sync"
	"time"
)

// Phase names used by the drawing sync engine.
const (
	PhaseLockWait = "lock_wait"
	PhaseValidate = "validate"
	PhaseLoad     = "load"
	PhaseDiff     = "diff"
	PhaseApply    = "apply"
	PhaseTotal    = "total"
)

// SyncTimings holds latency measurements for one reconciliation call.
type SyncTimings struct {
	mu sync.Mutex

	TotalStartTime time.Time `json:"-"`
	TotalLatencyMs float64   `json:"totalLatencyMs"`

	NodeID string `json:"nodeId"`
	Kinds  string `json:"kinds"`

	started map[string]time.Time
	Timings map[string]float64 `json:"timings"`
}

// NewSyncTimings creates a new timing collector and starts the total clock.
func NewSyncTimings(nodeID, kinds string) *SyncTimings {
	return &SyncTimings{
		TotalStartTime: time.Now(),
		NodeID:         nodeID,
		Kinds:          kinds,
		started:        make(map[string]time.Time),
		Timings:        make(map[string]float64),
	}
}

// StartPhase marks the start of a phase.
func (m *SyncTimings) StartPhase(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[phase] = time.Now()
}

// EndPhase marks the end of a phase. Repeated phases accumulate.
func (m *SyncTimings) EndPhase(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, ok := m.started[phase]
	if !ok {
		return
	}
	delete(m.started, phase)
	m.Timings[phase] += float64(time.Since(start).Microseconds()) / 1000.0
}

// Finalize stops the total clock and returns a copy of the timings.
func (m *SyncTimings) Finalize() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.TotalStartTime.IsZero() {
		m.TotalLatencyMs = float64(time.Since(m.TotalStartTime).Microseconds()) / 1000.0
		m.Timings[PhaseTotal] = m.TotalLatencyMs
	}
	out := make(map[string]float64, len(m.Timings))
	for k, v := range m.Timings {
		out[k] = v
	}
	return out
}
