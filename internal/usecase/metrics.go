package usecase

import (
	"sync"
	"time"
)

// MetricsSummary represents aggregated interaction counters for this process.
type MetricsSummary struct {
	TotalInteractions         int64            `json:"total_interactions"`
	Answered                  int64            `json:"answered"`
	Guidance                  int64            `json:"guidance"`
	Failed                    int64            `json:"failed"`
	FailuresByKind            map[string]int64 `json:"failures_by_kind"`
	SuccessRate               float64          `json:"success_rate"`
	AverageInferenceLatencyMs float64          `json:"average_inference_latency_ms"`
}

// Metrics keeps in-memory counters. They reset with the process.
type Metrics struct {
	mu           sync.Mutex
	answered     int64
	guidance     int64
	failures     map[FailureKind]int64
	latencyTotal time.Duration
	latencyCount int64
}

func NewMetrics() *Metrics {
	return &Metrics{failures: make(map[FailureKind]int64)}
}

func (m *Metrics) RecordGuidance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guidance++
}

func (m *Metrics) RecordAnswer(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered++
	m.latencyTotal += latency
	m.latencyCount++
}

func (m *Metrics) RecordFailure(kind FailureKind, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind]++
	m.latencyTotal += latency
	m.latencyCount++
}

// Summary aggregates the counters. SuccessRate is computed over interactions
// that reached the inference service, guidance states excluded.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := MetricsSummary{
		Answered:       m.answered,
		Guidance:       m.guidance,
		FailuresByKind: make(map[string]int64, len(FailureKinds)),
	}
	for _, kind := range FailureKinds {
		count := m.failures[kind]
		summary.FailuresByKind[string(kind)] = count
		summary.Failed += count
	}
	summary.TotalInteractions = summary.Answered + summary.Guidance + summary.Failed

	if attempts := summary.Answered + summary.Failed; attempts > 0 {
		summary.SuccessRate = float64(summary.Answered) / float64(attempts)
	}
	if m.latencyCount > 0 {
		summary.AverageInferenceLatencyMs = float64(m.latencyTotal.Milliseconds()) / float64(m.latencyCount)
	}
	return summary
}
