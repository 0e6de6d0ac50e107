package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

// formatValue quotes empty values and truncates long ones
func formatValue(v string, maxLen int) string {
	if v == "" {
		return `""`
	}
	if len(v) > maxLen {
		return v[:maxLen] + "..."
	}
	return v
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatReport(report *watcher.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(f.writer, "\n")

	for _, r := range report.Results {
		elapsed := cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds()))

		switch {
		case r.Failed():
			fmt.Fprintf(f.writer, "  %s %s %s %s\n", red("✗"), r.Job, elapsed, red(fmt.Sprintf("(%s)", r.Error)))
		case r.Changed:
			fmt.Fprintf(f.writer, "  %s %s %s\n", yellow("●"), r.Job, elapsed)
			for _, d := range r.Diff {
				fmt.Fprintf(f.writer, "    %s: %s %s %s\n", d.Item, formatValue(d.Old, 80), yellow("→"), formatValue(d.New, 80))
			}
		default:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Job, elapsed)
		}

		if !f.verbose {
			continue
		}

		if !r.Changed && len(r.Values) > 0 {
			items := make([]string, 0, len(r.Values))
			for item := range r.Values {
				items = append(items, item)
			}
			sort.Strings(items)
			for _, item := range items {
				fmt.Fprintf(f.writer, "    %s = %s\n", item, formatValue(r.Values[item], 80))
			}
		}
		if r.URL != "" {
			fmt.Fprintf(f.writer, "    URL: %s\n", r.URL)
		}
		if len(r.Notified) > 0 {
			fmt.Fprintf(f.writer, "    Notified: %v\n", r.Notified)
		}
		for _, e := range r.NotifyErrors {
			fmt.Fprintf(f.writer, "    %s %s\n", red("notify:"), e)
		}
	}

	s := report.Summary
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Jobs: ")
	if s.Changed > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d changed", s.Changed)))
	}
	if s.Unchanged > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d unchanged", s.Unchanged)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Total)
	fmt.Fprintf(f.writer, "Time: %dms (p50 %s, p95 %s, p99 %s)\n",
		report.Duration.Milliseconds(),
		roundMs(s.P50), roundMs(s.P95), roundMs(s.P99))
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("pagewatch"), version)
}

// Flush is a no-op, console output is written as it is formatted
func (f *ConsoleFormatter) Flush() error {
	return nil
}

func roundMs(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
