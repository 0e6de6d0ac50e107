package watcher

import (
	"sort"
	"time"

	"github.com/abdul-hamid-achik/pagewatch/packages/notify"
)

// Diff compares freshly extracted values with the stored ones. An item is
// reported unless its old value exists, is non-empty and equals the new value.
// Items that are no longer extracted are not reported.
func Diff(newValues, oldValues map[string]string) []notify.Diff {
	diffs := make([]notify.Diff, 0)
	for item, value := range newValues {
		old, ok := oldValues[item]
		if ok && old != "" && old == value {
			continue
		}
		diffs = append(diffs, notify.Diff{Item: item, Old: old, New: value})
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Item < diffs[j].Item
	})
	return diffs
}

// JobResult is the outcome of one job run
type JobResult struct {
	Job          string            `json:"job"`
	URL          string            `json:"url"`
	RunID        string            `json:"runId,omitempty"`
	Values       map[string]string `json:"values,omitempty"`
	Old          map[string]string `json:"old,omitempty"`
	Diff         []notify.Diff     `json:"diff,omitempty"`
	Changed      bool              `json:"changed"`
	Error        string            `json:"error,omitempty"`
	Err          error             `json:"-"`
	Notified     []string          `json:"notified,omitempty"`
	NotifyErrors []string          `json:"notifyErrors,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	Duration     time.Duration     `json:"duration"`
}

func (r *JobResult) fail(err error) {
	r.Err = err
	r.Error = err.Error()
	r.Values = nil
	r.Diff = nil
	r.Changed = false
}

// Failed reports whether the run ended with an error
func (r *JobResult) Failed() bool {
	return r.Err != nil
}

// Change converts the result into a notification
func (r *JobResult) Change() *notify.Change {
	return &notify.Change{
		Job:    r.Job,
		URL:    r.URL,
		Diff:   r.Diff,
		Values: r.Values,
		Error:  r.Error,
		Time:   r.StartedAt,
	}
}

// Summary aggregates a report
type Summary struct {
	Total     int           `json:"total"`
	Changed   int           `json:"changed"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	P50       time.Duration `json:"p50"`
	P95       time.Duration `json:"p95"`
	P99       time.Duration `json:"p99"`
}

// Report holds the results of running a set of jobs
type Report struct {
	Results   []*JobResult  `json:"results"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Summary   Summary       `json:"summary"`
}

// NewReport builds a report and its summary from results
func NewReport(results []*JobResult, startedAt time.Time, duration time.Duration) *Report {
	metrics := NewMetrics()
	summary := Summary{Total: len(results)}

	for _, r := range results {
		metrics.Record(r.Duration, r.Err)
		switch {
		case r.Failed():
			summary.Failed++
		case r.Changed:
			summary.Changed++
		default:
			summary.Unchanged++
		}
	}

	snap := metrics.Snapshot()
	summary.P50, summary.P95, summary.P99 = snap.P50, snap.P95, snap.P99

	return &Report{
		Results:   results,
		StartedAt: startedAt,
		Duration:  duration,
		Summary:   summary,
	}
}

// Failed reports whether any job failed
func (r *Report) Failed() bool {
	return r.Summary.Failed > 0
}
