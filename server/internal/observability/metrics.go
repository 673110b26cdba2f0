package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects HTTP request metrics per route and failures per error code.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	routes     map[string]*routeMetrics
	errorCodes map[string]int64

	durations    []time.Duration
	maxDurations int
}

type routeMetrics struct {
	count         int64
	errors        int64
	totalDuration time.Duration
}

// NewMetrics creates a new metrics collector keeping the last maxDurations samples.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		routes:       make(map[string]*routeMetrics),
		errorCodes:   make(map[string]int64),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records a finished request. An empty errorCode marks success.
func (m *Metrics) RecordRequest(route string, duration time.Duration, errorCode string) {
	m.requestTotal.Add(1)
	if errorCode != "" {
		m.requestFailed.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.routes[route]
	if !ok {
		rm = &routeMetrics{}
		m.routes[route] = rm
	}
	rm.count++
	rm.totalDuration += duration
	if errorCode != "" {
		rm.errors++
		m.errorCodes[errorCode]++
	}

	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
}

// GetRequestTotal returns the total number of requests.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetRequestFailed returns the total number of failed requests.
func (m *Metrics) GetRequestFailed() int64 {
	return m.requestFailed.Load()
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)

	m.mu.Lock()
	m.routes = make(map[string]*routeMetrics)
	m.errorCodes = make(map[string]int64)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	routes := make([]RouteSnapshot, 0, len(m.routes))
	for route, rm := range m.routes {
		rs := RouteSnapshot{Route: route, Count: rm.count, Errors: rm.errors}
		if rm.count > 0 {
			rs.AverageMs = (rm.totalDuration / time.Duration(rm.count)).Milliseconds()
		}
		routes = append(routes, rs)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Route < routes[j].Route })

	codes := make(map[string]int64, len(m.errorCodes))
	for code, n := range m.errorCodes {
		codes[code] = n
	}

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		ErrorCodes:    codes,
		Routes:        routes,
		P50Ms:         percentileMs(m.durations, 0.50),
		P95Ms:         percentileMs(m.durations, 0.95),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64            `json:"request_total"`
	RequestFailed int64            `json:"request_failed"`
	ErrorCodes    map[string]int64 `json:"error_codes"`
	Routes        []RouteSnapshot  `json:"routes"`
	P50Ms         int64            `json:"p50_ms"`
	P95Ms         int64            `json:"p95_ms"`
}

// RouteSnapshot represents metrics for a single route.
type RouteSnapshot struct {
	Route     string `json:"route"`
	Count     int64  `json:"count"`
	Errors    int64  `json:"errors"`
	AverageMs int64  `json:"average_ms"`
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}

func percentileMs(samples []time.Duration, p float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx].Milliseconds()
}
