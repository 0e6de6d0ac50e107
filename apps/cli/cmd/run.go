package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
	"github.com/abdul-hamid-achik/pagewatch/packages/export/metrics"
	"github.com/abdul-hamid-achik/pagewatch/packages/output"
	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run [watch-file]",
	Short: "Check every job once and print a report",
	Long: `Open every enabled job's page once, extract its items, compare them with
the stored values and send notifications. Without an argument the watch file
is looked up in the current directory.

Examples:
  pagewatch run
  pagewatch run pagewatch.yaml --job ip
  pagewatch run pagewatch.yaml -o junit --output-file report.xml
  pagewatch run pagewatch.yaml --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	jobFlag         []string
	outputFlag      string
	outputFileFlag  string
	metricsFileFlag string
	watchFlag       bool
)

func init() {
	runCmd.Flags().StringSliceVarP(&jobFlag, "job", "j", nil, "Run only the named jobs (repeatable or comma-separated)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("PAGEWATCH_OUTPUT", "console"), "Output format: console, json, junit, tap (env: PAGEWATCH_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("PAGEWATCH_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: PAGEWATCH_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("PAGEWATCH_METRICS_FILE", ""), "Write run metrics as JSON to file (env: PAGEWATCH_METRICS_FILE)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Re-run the jobs whenever the watch file changes")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

// selectJobs returns the enabled jobs, or the named ones in the given order
func selectJobs(cfg *config.Config, names []string) ([]*config.Job, error) {
	if len(names) == 0 {
		return cfg.EnabledJobs(), nil
	}

	jobs := make([]*config.Job, 0, len(names))
	for _, name := range names {
		job, ok := cfg.FindJob(name)
		if !ok {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("unknown job %q", name))
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	var outWriter io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("failed to create output file: %w", err))
		}
		defer f.Close()
		outWriter = f
	}

	newFormatter := func() (output.Formatter, error) {
		return output.New(outputFlag, output.Options{
			Writer:  outWriter,
			Verbose: verboseFlag,
			NoColor: settings.NoColor,
		})
	}
	formatter, err := newFormatter()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	cfg, path, err := loadConfig(args)
	if err != nil {
		formatter.FormatError(err)
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var exporters []metrics.Exporter
	if metricsFileFlag != "" {
		exporters = append(exporters, metrics.NewJSONExporter(
			metrics.WithJSONFile(metricsFileFlag),
			metrics.WithJSONVersion(version),
		))
	}
	collector := metrics.NewCollector(exporters...)
	defer func() {
		if err := collector.Flush(); err != nil {
			logger.Error().Err(err).Msg("failed to export metrics")
		}
		_ = collector.Close()
	}()

	report, err := runOnce(ctx, cfg, collector, formatter)
	if err != nil {
		return err
	}

	if !watchFlag {
		if report.Failed() {
			return withExitCode(ExitJobFailure, fmt.Errorf("%d of %d job(s) failed", report.Summary.Failed, report.Summary.Total))
		}
		return nil
	}

	return watchFile(ctx, path, func() {
		cfg, _, err := loadConfig([]string{path})
		f, ferr := newFormatter()
		if ferr != nil {
			return
		}
		if err != nil {
			f.FormatError(err)
			_ = f.Flush()
			return
		}
		if _, err := runOnce(ctx, cfg, collector, f); err != nil {
			f.FormatError(err)
			_ = f.Flush()
		}
	})
}

// runOnce runs the selected jobs of cfg and renders the report
func runOnce(ctx context.Context, cfg *config.Config, collector *metrics.Collector, formatter output.Formatter) (*watcher.Report, error) {
	jobs, err := selectJobs(cfg, jobFlag)
	if err != nil {
		formatter.FormatError(err)
		return nil, err
	}

	rt, err := newRuntime(ctx, cfg, watcher.WithObserver(collector.Observe))
	if err != nil {
		formatter.FormatError(err)
		return nil, err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn().Err(err).Msg("cleanup failed")
		}
	}()

	formatter.FormatHeader(version)
	report := rt.watcher.RunJobs(ctx, jobs)
	formatter.FormatReport(report)
	if err := formatter.Flush(); err != nil {
		return report, fmt.Errorf("failed to write output: %w", err)
	}
	return report, nil
}

// watchFile calls onChange, debounced, whenever path is written. It returns
// when ctx is done.
func watchFile(ctx context.Context, path string, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	// Editors often replace the file, so the directory is watched
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	logger.Info().Str("file", path).Msg("watching for changes, press Ctrl+C to stop")

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			logger.Info().Str("file", path).Msg("watch file changed")
			onChange()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("file watcher error")
		}
	}
}
