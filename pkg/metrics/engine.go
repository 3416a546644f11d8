package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scenes_events_total",
		Help: "Response events emitted by the scene manager, by status.",
	}, []string{"status"})

	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scenes_rounds_total",
		Help: "Scene rounds run, by scene.",
	}, []string{"scene"})

	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scenes_dispatch_total",
		Help: "Tool dispatches, by target kind and outcome.",
	}, []string{"kind", "outcome"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scenes_dispatch_duration_seconds",
		Help:    "Tool dispatch latency, by target kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	defaultEngine = NewEngineMetrics()
)

// EngineMetrics keeps in-process totals next to the Prometheus series, for
// the CLI and tests that have no scraper.
type EngineMetrics struct {
	mu sync.RWMutex

	TotalEvents      int64
	TotalRounds      int64
	TotalDispatches  int64
	FailedDispatches int64
	DispatchTime     time.Duration
}

// NewEngineMetrics creates a new EngineMetrics instance
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{}
}

// RecordEvent records an emitted event
func (m *EngineMetrics) RecordEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalEvents++
}

// RecordRound records a scene round
func (m *EngineMetrics) RecordRound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRounds++
}

// RecordDispatch records a tool dispatch
func (m *EngineMetrics) RecordDispatch(success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalDispatches++
	if !success {
		m.FailedDispatches++
	}
	m.DispatchTime += duration
}

// GetMetrics returns a snapshot of the current metrics
func (m *EngineMetrics) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avg := 0.0
	if m.TotalDispatches > 0 {
		avg = m.DispatchTime.Seconds() / float64(m.TotalDispatches)
	}

	return map[string]any{
		"total_events":      m.TotalEvents,
		"total_rounds":      m.TotalRounds,
		"total_dispatches":  m.TotalDispatches,
		"failed_dispatches": m.FailedDispatches,
		"avg_dispatch_time": avg,
	}
}

// ObserveEvent counts an emitted event.
func ObserveEvent(status string) {
	eventsTotal.WithLabelValues(status).Inc()
	defaultEngine.RecordEvent()
}

// ObserveRound counts a scene round.
func ObserveRound(scene string) {
	roundsTotal.WithLabelValues(scene).Inc()
	defaultEngine.RecordRound()
}

// ObserveDispatch counts a dispatch and its latency.
func ObserveDispatch(kind string, success bool, duration time.Duration) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}

	if kind == "" {
		kind = "none"
	}

	dispatchTotal.WithLabelValues(kind, outcome).Inc()
	dispatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	defaultEngine.RecordDispatch(success, duration)
}

// Snapshot returns the process-wide totals.
func Snapshot() map[string]any {
	return defaultEngine.GetMetrics()
}
