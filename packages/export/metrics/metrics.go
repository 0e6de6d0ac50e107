// Package metrics aggregates watch job runs and exports them as Prometheus
// text or JSON.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

// JobMetrics is the record of one job run
type JobMetrics struct {
	Job        string    `json:"job"`
	URL        string    `json:"url"`
	DurationMs float64   `json:"duration_ms"`
	Failed     bool      `json:"failed"`
	Changed    bool      `json:"changed"`
	Notified   int       `json:"notified"`
	NotifyErrs int       `json:"notify_errors"`
	Timestamp  time.Time `json:"timestamp"`
}

// AggregateMetrics represents aggregated metrics from many runs
type AggregateMetrics struct {
	TotalRuns       int64                    `json:"total_runs"`
	FailureCount    int64                    `json:"failure_count"`
	ChangeCount     int64                    `json:"change_count"`
	NotifyErrors    int64                    `json:"notify_errors"`
	TotalDurationMs float64                  `json:"total_duration_ms"`
	MinDurationMs   float64                  `json:"min_duration_ms"`
	MaxDurationMs   float64                  `json:"max_duration_ms"`
	AvgDurationMs   float64                  `json:"avg_duration_ms"`
	P50DurationMs   float64                  `json:"p50_duration_ms"`
	P95DurationMs   float64                  `json:"p95_duration_ms"`
	P99DurationMs   float64                  `json:"p99_duration_ms"`
	ByJob           map[string]*JobAggregate `json:"by_job"`
}

// JobAggregate represents aggregated metrics for a single job
type JobAggregate struct {
	Name          string    `json:"name"`
	TotalRuns     int64     `json:"total_runs"`
	FailureCount  int64     `json:"failure_count"`
	ChangeCount   int64     `json:"change_count"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
	MinDurationMs float64   `json:"min_duration_ms"`
	MaxDurationMs float64   `json:"max_duration_ms"`
	LastRun       time.Time `json:"last_run"`
	LastError     string    `json:"last_error,omitempty"`
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// Export exports aggregated metrics to the target destination
	Export(metrics *AggregateMetrics) error

	// ExportSingle exports a single run
	ExportSingle(metric *JobMetrics) error

	// Close closes the exporter and flushes any buffered data
	Close() error
}

// Collector collects metrics from job runs. It is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	latency   *watcher.Metrics
	aggregate *AggregateMetrics
	last      map[string]*watcher.JobResult
	exporters []Exporter
}

// NewCollector creates a new metrics collector
func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{
		latency:   watcher.NewMetrics(),
		exporters: exporters,
		last:      make(map[string]*watcher.JobResult),
		aggregate: &AggregateMetrics{
			ByJob: make(map[string]*JobAggregate),
		},
	}
}

// FromResult converts a job result into a metric
func FromResult(res *watcher.JobResult) *JobMetrics {
	return &JobMetrics{
		Job:        res.Job,
		URL:        res.URL,
		DurationMs: float64(res.Duration) / float64(time.Millisecond),
		Failed:     res.Failed(),
		Changed:    res.Changed,
		Notified:   len(res.Notified),
		NotifyErrs: len(res.NotifyErrors),
		Timestamp:  res.StartedAt,
	}
}

// Observe records a finished job run. Its signature matches watcher.WithObserver.
func (c *Collector) Observe(res *watcher.JobResult) {
	m := FromResult(res)

	c.mu.Lock()
	c.last[res.Job] = res
	c.latency.Record(res.Duration, res.Err)
	c.updateAggregate(m, res.Error)
	exporters := c.exporters
	c.mu.Unlock()

	for _, exp := range exporters {
		_ = exp.ExportSingle(m)
	}
}

// ObserveReport records every result of a report
func (c *Collector) ObserveReport(report *watcher.Report) {
	for _, res := range report.Results {
		c.Observe(res)
	}
}

func (c *Collector) updateAggregate(m *JobMetrics, lastError string) {
	a := c.aggregate
	a.TotalRuns++
	a.TotalDurationMs += m.DurationMs
	a.NotifyErrors += int64(m.NotifyErrs)

	if m.Failed {
		a.FailureCount++
	}
	if m.Changed {
		a.ChangeCount++
	}

	// Update min/max
	if a.TotalRuns == 1 {
		a.MinDurationMs = m.DurationMs
		a.MaxDurationMs = m.DurationMs
	} else {
		if m.DurationMs < a.MinDurationMs {
			a.MinDurationMs = m.DurationMs
		}
		if m.DurationMs > a.MaxDurationMs {
			a.MaxDurationMs = m.DurationMs
		}
	}

	a.AvgDurationMs = a.TotalDurationMs / float64(a.TotalRuns)

	snap := c.latency.Snapshot()
	a.P50DurationMs = durationMs(snap.P50)
	a.P95DurationMs = durationMs(snap.P95)
	a.P99DurationMs = durationMs(snap.P99)

	// Update per-job aggregates
	if _, ok := a.ByJob[m.Job]; !ok {
		a.ByJob[m.Job] = &JobAggregate{
			Name:          m.Job,
			MinDurationMs: m.DurationMs,
			MaxDurationMs: m.DurationMs,
		}
	}

	ja := a.ByJob[m.Job]
	ja.TotalRuns++
	if m.Failed {
		ja.FailureCount++
	}
	if m.Changed {
		ja.ChangeCount++
	}
	if m.DurationMs < ja.MinDurationMs {
		ja.MinDurationMs = m.DurationMs
	}
	if m.DurationMs > ja.MaxDurationMs {
		ja.MaxDurationMs = m.DurationMs
	}
	ja.AvgDurationMs = (ja.AvgDurationMs*float64(ja.TotalRuns-1) + m.DurationMs) / float64(ja.TotalRuns)
	ja.LastRun = m.Timestamp
	ja.LastError = lastError
}

// GetAggregate returns a copy of the aggregated metrics
func (c *Collector) GetAggregate() *AggregateMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *c.aggregate
	cp.ByJob = make(map[string]*JobAggregate, len(c.aggregate.ByJob))
	for name, ja := range c.aggregate.ByJob {
		jc := *ja
		cp.ByJob[name] = &jc
	}
	return &cp
}

// LastResults returns the latest result of every job, sorted by job name
func (c *Collector) LastResults() []*watcher.JobResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]*watcher.JobResult, 0, len(c.last))
	for _, res := range c.last {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Job < results[j].Job
	})
	return results
}

// Flush exports all aggregated metrics
func (c *Collector) Flush() error {
	aggregate := c.GetAggregate()
	for _, exp := range c.exporters {
		if err := exp.Export(aggregate); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all exporters
func (c *Collector) Close() error {
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			return err
		}
	}
	return nil
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
