package agent

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const (
	maxDurationSamples = 100
	maxLatencySamples  = 50
)

// Metrics collects turn and function call statistics.
// All operations are safe for concurrent use.
type Metrics struct {
	mu sync.RWMutex

	turnDuration []time.Duration

	totalTurns      atomic.Int64
	successfulTurns atomic.Int64
	failedTurns     atomic.Int64
	directAnswers   atomic.Int64
	functionTurns   atomic.Int64
	degradedTurns   atomic.Int64
	compactions     atomic.Int64

	errorKinds map[ErrorKind]int64

	functionCalls    map[string]int64
	functionFailures map[string]int64
	functionLatency  map[string][]time.Duration
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		turnDuration:     make([]time.Duration, 0, maxDurationSamples),
		errorKinds:       make(map[ErrorKind]int64),
		functionCalls:    make(map[string]int64),
		functionFailures: make(map[string]int64),
		functionLatency:  make(map[string][]time.Duration),
	}
}

// RecordTurn records a finished turn. result is nil when the turn failed.
func (m *Metrics) RecordTurn(duration time.Duration, result *TurnResult, kind ErrorKind) {
	m.totalTurns.Add(1)
	if kind == KindNone {
		m.successfulTurns.Add(1)
		switch {
		case result != nil && result.Degraded:
			m.degradedTurns.Add(1)
		case result != nil && result.Function != "":
			m.functionTurns.Add(1)
		default:
			m.directAnswers.Add(1)
		}
	} else {
		m.failedTurns.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if kind != KindNone {
		m.errorKinds[kind]++
	}

	// Keep only the last N samples
	if len(m.turnDuration) >= maxDurationSamples {
		m.turnDuration = m.turnDuration[1:]
	}
	m.turnDuration = append(m.turnDuration, duration)
}

// RecordFunctionCall records one function execution.
func (m *Metrics) RecordFunctionCall(name string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.functionCalls[name]++
	if !success {
		m.functionFailures[name]++
	}

	latency := m.functionLatency[name]
	if len(latency) >= maxLatencySamples {
		latency = latency[1:]
	}
	m.functionLatency[name] = append(latency, duration)
}

// RecordCompactions adds n memory compactions.
func (m *Metrics) RecordCompactions(n int) {
	if n > 0 {
		m.compactions.Add(int64(n))
	}
}

// FunctionStats represents statistics for a single function.
type FunctionStats struct {
	Name             string  `json:"name"`
	TotalCalls       int64   `json:"total_calls"`
	Failures         int64   `json:"failures"`
	SuccessRate      float64 `json:"success_rate"`
	AverageLatencyMs int64   `json:"average_latency_ms"`
}

// MetricsSummary is a point-in-time view of the collected metrics.
type MetricsSummary struct {
	TotalTurns      int64               `json:"total_turns"`
	SuccessfulTurns int64               `json:"successful_turns"`
	FailedTurns     int64               `json:"failed_turns"`
	DirectAnswers   int64               `json:"direct_answers"`
	FunctionTurns   int64               `json:"function_turns"`
	DegradedTurns   int64               `json:"degraded_turns"`
	Compactions     int64               `json:"compactions"`
	SuccessRate     float64             `json:"success_rate"`
	AverageMs       int64               `json:"average_ms"`
	P95Ms           int64               `json:"p95_ms"`
	Errors          map[ErrorKind]int64 `json:"errors"`
	Functions       []FunctionStats     `json:"functions"`
}

// SuccessRate returns the turn success rate as a percentage (0-100).
func (m *Metrics) SuccessRate() float64 {
	total := m.totalTurns.Load()
	if total == 0 {
		return 0
	}
	return float64(m.successfulTurns.Load()) / float64(total) * 100
}

// Summary returns a snapshot of all metrics.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[ErrorKind]int64, len(m.errorKinds))
	for k, v := range m.errorKinds {
		errs[k] = v
	}

	functions := make([]FunctionStats, 0, len(m.functionCalls))
	for name := range m.functionCalls {
		functions = append(functions, m.functionStats(name))
	}
	slices.SortFunc(functions, func(a, b FunctionStats) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return MetricsSummary{
		TotalTurns:      m.totalTurns.Load(),
		SuccessfulTurns: m.successfulTurns.Load(),
		FailedTurns:     m.failedTurns.Load(),
		DirectAnswers:   m.directAnswers.Load(),
		FunctionTurns:   m.functionTurns.Load(),
		DegradedTurns:   m.degradedTurns.Load(),
		Compactions:     m.compactions.Load(),
		SuccessRate:     m.SuccessRate(),
		AverageMs:       average(m.turnDuration).Milliseconds(),
		P95Ms:           percentile(m.turnDuration, 0.95).Milliseconds(),
		Errors:          errs,
		Functions:       functions,
	}
}

// Must be called with mu held.
func (m *Metrics) functionStats(name string) FunctionStats {
	stats := FunctionStats{
		Name:       name,
		TotalCalls: m.functionCalls[name],
		Failures:   m.functionFailures[name],
	}
	if stats.TotalCalls > 0 {
		stats.SuccessRate = 100 - float64(stats.Failures)/float64(stats.TotalCalls)*100
	}
	stats.AverageLatencyMs = average(m.functionLatency[name]).Milliseconds()
	return stats
}

// LogSummary logs the current metrics summary.
func (m *Metrics) LogSummary() {
	summary := m.Summary()
	slog.Info("agent_metrics_summary",
		"total_turns", summary.TotalTurns,
		"success_rate", fmtFloat(summary.SuccessRate),
		"avg_duration_ms", summary.AverageMs,
		"p95_duration_ms", summary.P95Ms,
		"function_turns", summary.FunctionTurns,
		"degraded_turns", summary.DegradedTurns,
		"compactions", summary.Compactions,
	)
}

func average(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return sum / time.Duration(len(samples))
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// fmtFloat formats a float value with 2 decimal places.
func fmtFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
