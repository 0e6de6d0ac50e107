package watcher

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// latency bounds in microseconds
const (
	minLatency = 1
	maxLatency = 10 * 60 * 1_000_000
)

// Metrics collects job run latencies
type Metrics struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	runs      int64
	errors    int64
}

// MetricsSnapshot is a point-in-time view of Metrics
type MetricsSnapshot struct {
	Runs   int64
	Errors int64
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
}

// NewMetrics creates an empty collector
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(minLatency, maxLatency, 3),
	}
}

// Record adds one run
func (m *Metrics) Record(d time.Duration, err error) {
	latencyUs := d.Microseconds()
	if latencyUs < minLatency {
		latencyUs = minLatency
	}
	if latencyUs > maxLatency {
		latencyUs = maxLatency
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs++
	if err != nil {
		m.errors++
	}
	_ = m.histogram.RecordValue(latencyUs)
}

// Snapshot returns the current counters and percentiles
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Runs:   m.runs,
		Errors: m.errors,
	}
	if m.runs == 0 {
		return snap
	}

	snap.Min = usToDuration(m.histogram.Min())
	snap.Max = usToDuration(m.histogram.Max())
	snap.Mean = time.Duration(m.histogram.Mean() * float64(time.Microsecond))
	snap.P50 = usToDuration(m.histogram.ValueAtQuantile(50))
	snap.P95 = usToDuration(m.histogram.ValueAtQuantile(95))
	snap.P99 = usToDuration(m.histogram.ValueAtQuantile(99))
	return snap
}

// Reset clears all recorded runs
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histogram.Reset()
	m.runs = 0
	m.errors = 0
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
