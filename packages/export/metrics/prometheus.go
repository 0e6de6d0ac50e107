package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// PrometheusExporter exports metrics in Prometheus text format
type PrometheusExporter struct {
	mu        sync.RWMutex
	aggregate *AggregateMetrics
	source    func() *AggregateMetrics
	writer    io.Writer
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter writes the metrics to w on every Export
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusSource makes the handler read live metrics from source,
// usually Collector.GetAggregate
func WithPrometheusSource(source func() *AggregateMetrics) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.source = source
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{
		aggregate: &AggregateMetrics{ByJob: make(map[string]*JobAggregate)},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ServeHTTP writes the current metrics
func (p *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	p.writeMetrics(w, p.current())
}

func (p *PrometheusExporter) current() *AggregateMetrics {
	if p.source != nil {
		return p.source()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aggregate
}

// Export stores the aggregate and writes it when a writer is configured
func (p *PrometheusExporter) Export(metrics *AggregateMetrics) error {
	p.mu.Lock()
	p.aggregate = metrics
	p.mu.Unlock()

	if p.writer != nil {
		p.writeMetrics(p.writer, metrics)
	}

	return nil
}

// ExportSingle is a no-op, Prometheus scrapes aggregates
func (p *PrometheusExporter) ExportSingle(metric *JobMetrics) error {
	return nil
}

func (p *PrometheusExporter) writeMetrics(w io.Writer, a *AggregateMetrics) {
	fmt.Fprintf(w, "# HELP pagewatch_runs_total Total number of job runs\n")
	fmt.Fprintf(w, "# TYPE pagewatch_runs_total counter\n")
	fmt.Fprintf(w, "pagewatch_runs_total %d\n", a.TotalRuns)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP pagewatch_runs_failed_total Total number of failed job runs\n")
	fmt.Fprintf(w, "# TYPE pagewatch_runs_failed_total counter\n")
	fmt.Fprintf(w, "pagewatch_runs_failed_total %d\n", a.FailureCount)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP pagewatch_changes_total Total number of runs that found changed values\n")
	fmt.Fprintf(w, "# TYPE pagewatch_changes_total counter\n")
	fmt.Fprintf(w, "pagewatch_changes_total %d\n", a.ChangeCount)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP pagewatch_notify_errors_total Total number of failed notifications\n")
	fmt.Fprintf(w, "# TYPE pagewatch_notify_errors_total counter\n")
	fmt.Fprintf(w, "pagewatch_notify_errors_total %d\n", a.NotifyErrors)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP pagewatch_run_duration_ms Job run duration in milliseconds\n")
	fmt.Fprintf(w, "# TYPE pagewatch_run_duration_ms gauge\n")
	fmt.Fprintf(w, "pagewatch_run_duration_ms{quantile=\"min\"} %.2f\n", a.MinDurationMs)
	fmt.Fprintf(w, "pagewatch_run_duration_ms{quantile=\"max\"} %.2f\n", a.MaxDurationMs)
	fmt.Fprintf(w, "pagewatch_run_duration_ms{quantile=\"avg\"} %.2f\n", a.AvgDurationMs)
	if a.P50DurationMs > 0 {
		fmt.Fprintf(w, "pagewatch_run_duration_ms{quantile=\"0.50\"} %.2f\n", a.P50DurationMs)
	}
	if a.P95DurationMs > 0 {
		fmt.Fprintf(w, "pagewatch_run_duration_ms{quantile=\"0.95\"} %.2f\n", a.P95DurationMs)
	}
	if a.P99DurationMs > 0 {
		fmt.Fprintf(w, "pagewatch_run_duration_ms{quantile=\"0.99\"} %.2f\n", a.P99DurationMs)
	}
	fmt.Fprintln(w)

	if len(a.ByJob) == 0 {
		return
	}

	// Sort job names for consistent output
	names := make([]string, 0, len(a.ByJob))
	for name := range a.ByJob {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "# HELP pagewatch_job_runs_total Runs per job\n")
	fmt.Fprintf(w, "# TYPE pagewatch_job_runs_total counter\n")
	for _, name := range names {
		fmt.Fprintf(w, "pagewatch_job_runs_total{job=\"%s\"} %d\n", sanitizeLabel(name), a.ByJob[name].TotalRuns)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP pagewatch_job_failures_total Failed runs per job\n")
	fmt.Fprintf(w, "# TYPE pagewatch_job_failures_total counter\n")
	for _, name := range names {
		fmt.Fprintf(w, "pagewatch_job_failures_total{job=\"%s\"} %d\n", sanitizeLabel(name), a.ByJob[name].FailureCount)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP pagewatch_job_duration_avg_ms Average run duration per job\n")
	fmt.Fprintf(w, "# TYPE pagewatch_job_duration_avg_ms gauge\n")
	for _, name := range names {
		fmt.Fprintf(w, "pagewatch_job_duration_avg_ms{job=\"%s\"} %.2f\n", sanitizeLabel(name), a.ByJob[name].AvgDurationMs)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP pagewatch_job_last_run_timestamp_seconds Start time of the last run per job\n")
	fmt.Fprintf(w, "# TYPE pagewatch_job_last_run_timestamp_seconds gauge\n")
	for _, name := range names {
		fmt.Fprintf(w, "pagewatch_job_last_run_timestamp_seconds{job=\"%s\"} %d\n", sanitizeLabel(name), a.ByJob[name].LastRun.Unix())
	}
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Close is a no-op
func (p *PrometheusExporter) Close() error {
	return nil
}
