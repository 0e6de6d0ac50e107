package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

// TAPFormatter formats reports in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number  int
	name    string
	error   string
	changes []string
	notify  []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatReport(report *watcher.Report) {
	for _, r := range report.Results {
		f.testCount++
		tr := tapResult{
			number: f.testCount,
			name:   r.Job,
			error:  r.Error,
			notify: r.NotifyErrors,
		}

		for _, d := range r.Diff {
			tr.changes = append(tr.changes, fmt.Sprintf("%s: %s -> %s", d.Item, d.Old, d.New))
		}

		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	f.testCount++
	f.results = append(f.results, tapResult{
		number: f.testCount,
		name:   "setup",
		error:  err.Error(),
	})
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush() error {
	// TAP version header
	fmt.Fprintf(f.writer, "TAP version 13\n")

	// Test plan
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.error != "" {
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.error))
			fmt.Fprintf(f.writer, "  severity: error\n")
			fmt.Fprintf(f.writer, "  ...\n")
			continue
		}

		if len(r.notify) > 0 {
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		} else {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
		}

		if len(r.changes) > 0 || len(r.notify) > 0 {
			fmt.Fprintf(f.writer, "  ---\n")
			if len(r.changes) > 0 {
				fmt.Fprintf(f.writer, "  changes:\n")
				for _, c := range r.changes {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(c))
				}
			}
			if len(r.notify) > 0 {
				fmt.Fprintf(f.writer, "  notify_errors:\n")
				for _, e := range r.notify {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(e))
				}
			}
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	// Add final newline for proper TAP output
	fmt.Fprintln(f.writer)

	return nil
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
