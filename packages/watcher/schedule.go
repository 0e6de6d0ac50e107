package watcher

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
)

// Schedule runs every enabled job on its cron schedule until ctx is done.
// It waits for running jobs before returning. A job whose previous run is
// still in progress skips its next tick.
func (w *Watcher) Schedule(ctx context.Context) error {
	logger := cronLogger{w.logger}
	c := cron.New(
		cron.WithParser(config.ScheduleParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, job := range w.cfg.EnabledJobs() {
		job := job
		_, err := c.AddFunc(job.Schedule, func() {
			res := w.RunJob(ctx, job)
			w.logResult(res)
		})
		if err != nil {
			return fmt.Errorf("job %q: invalid schedule %q: %w", job.Name, job.Schedule, err)
		}
	}

	w.logger.Info().Int("jobs", len(c.Entries())).Msg("scheduler started")
	c.Start()

	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()

	snap := w.metrics.Snapshot()
	w.logger.Info().
		Int64("runs", snap.Runs).
		Int64("errors", snap.Errors).
		Dur("p95", snap.P95).
		Msg("scheduler stopped")
	return nil
}

func (w *Watcher) logResult(res *JobResult) {
	var event *zerolog.Event
	switch {
	case res.Failed():
		event = w.logger.Error().Str("error", res.Error)
	case res.Changed:
		event = w.logger.Info().Int("changed", len(res.Diff))
	default:
		event = w.logger.Debug()
	}
	event.
		Str("job", res.Job).
		Dur("duration", res.Duration).
		Msg("scheduled run finished")
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
