package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/pagewatch/packages/notify"
	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Version  string      `json:"version,omitempty"`
	Summary  JSONSummary `json:"summary"`
	Jobs     []JSONJob   `json:"jobs"`
	Errors   []string    `json:"errors,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the report summary, durations in milliseconds
type JSONSummary struct {
	Total     int     `json:"total"`
	Changed   int     `json:"changed"`
	Unchanged int     `json:"unchanged"`
	Failed    int     `json:"failed"`
	P50       float64 `json:"p50"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
}

// JSONJob represents a single job result
type JSONJob struct {
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	RunID        string            `json:"runId,omitempty"`
	Changed      bool              `json:"changed"`
	Failed       bool              `json:"failed"`
	Duration     float64           `json:"duration"`
	Error        string            `json:"error,omitempty"`
	Values       map[string]string `json:"values,omitempty"`
	Diff         []notify.Diff     `json:"diff,omitempty"`
	Notified     []string          `json:"notified,omitempty"`
	NotifyErrors []string          `json:"notifyErrors,omitempty"`
}

// JSONFormatter formats reports as JSON
type JSONFormatter struct {
	writer   io.Writer
	version  string
	jobs     []JSONJob
	errors   []string
	summary  JSONSummary
	duration time.Duration
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		jobs:   make([]JSONJob, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatReport(report *watcher.Report) {
	for _, r := range report.Results {
		f.jobs = append(f.jobs, JSONJob{
			Name:         r.Job,
			URL:          r.URL,
			RunID:        r.RunID,
			Changed:      r.Changed,
			Failed:       r.Failed(),
			Duration:     milliseconds(r.Duration),
			Error:        r.Error,
			Values:       r.Values,
			Diff:         r.Diff,
			Notified:     r.Notified,
			NotifyErrors: r.NotifyErrors,
		})
	}

	s := report.Summary
	f.summary.Total += s.Total
	f.summary.Changed += s.Changed
	f.summary.Unchanged += s.Unchanged
	f.summary.Failed += s.Failed
	f.summary.P50 = milliseconds(s.P50)
	f.summary.P95 = milliseconds(s.P95)
	f.summary.P99 = milliseconds(s.P99)
	f.duration += report.Duration
}

func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	output := JSONOutput{
		Version:  f.version,
		Summary:  f.summary,
		Jobs:     f.jobs,
		Errors:   f.errors,
		Duration: milliseconds(f.duration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
