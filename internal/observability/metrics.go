package observability

import (
	"strconv"
	"sync"
	"time"
)

var timeNow = time.Now

// RouteStats aggregates requests for one method, route and status.
type RouteStats struct {
	Count        int64         `json:"count"`
	TotalLatency time.Duration `json:"total_latency_ns"`
}

// Metrics provides basic in-memory request counters.
type Metrics struct {
	mu       sync.Mutex
	requests map[string]RouteStats
	errors   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[string]RouteStats),
		errors:   make(map[string]int64),
	}
}

// RecordRequest counts a handled request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := metricKey(route, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.requests[key]
	s.Count++
	s.TotalLatency += duration
	m.requests[key] = s
}

// RecordError counts an error response by its error code.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[metricKey(route, method, code)]++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests map[string]RouteStats `json:"requests"`
	Errors   map[string]int64      `json:"errors"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Snapshot{
		Requests: make(map[string]RouteStats, len(m.requests)),
		Errors:   make(map[string]int64, len(m.errors)),
	}
	for k, v := range m.requests {
		out.Requests[k] = v
	}
	for k, v := range m.errors {
		out.Errors[k] = v
	}
	return out
}

func metricKey(route, method, suffix string) string {
	return method + " " + route + " " + suffix
}
