// Package watcher runs watch jobs: it opens each page, extracts the configured
// items, compares them with the stored values and notifies about changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
	"github.com/abdul-hamid-achik/pagewatch/packages/extract"
	"github.com/abdul-hamid-achik/pagewatch/packages/notify"
	"github.com/abdul-hamid-achik/pagewatch/packages/store"
)

// ErrNoOpener is returned by New when no page opener is configured
var ErrNoOpener = errors.New("no page opener configured")

// Page is a rendered page the watcher can evaluate and close
type Page interface {
	extract.PageHandle
	Close() error
}

// PageOpener loads url and returns the rendered page
type PageOpener func(ctx context.Context, url string) (Page, error)

// Store persists values between runs
type Store interface {
	GetValues(ctx context.Context, job string) (map[string]string, error)
	SetValues(ctx context.Context, job string, values map[string]string) error
	RecordRun(ctx context.Context, run *store.Run) error
}

// Watcher executes the jobs of a config
type Watcher struct {
	cfg       *config.Config
	store     Store
	open      PageOpener
	registry  *notify.Registry
	logger    zerolog.Logger
	now       func() time.Time
	extractor *extract.Extractor
	limiter   *rate.Limiter
	metrics   *Metrics
	observers []func(*JobResult)

	// owned is closed by Close when New opened the store itself
	owned *store.Store
}

// Option configures a Watcher
type Option func(*Watcher)

// WithStore sets the value store
func WithStore(s Store) Option {
	return func(w *Watcher) {
		w.store = s
	}
}

// WithPageOpener sets the function used to open pages
func WithPageOpener(open PageOpener) Option {
	return func(w *Watcher) {
		w.open = open
	}
}

// WithRegistry sets the notifiers jobs can reference
func WithRegistry(r *notify.Registry) Option {
	return func(w *Watcher) {
		w.registry = r
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		w.now = now
	}
}

// WithObserver registers fn to be called with every finished job result.
// Observers run on the job's goroutine and must not block.
func WithObserver(fn func(*JobResult)) Option {
	return func(w *Watcher) {
		w.observers = append(w.observers, fn)
	}
}

// New creates a watcher for cfg. Without a store option the values are kept
// in an in-memory database. Without a registry only the log notifier exists.
func New(cfg *config.Config, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		cfg:       cfg,
		logger:    zerolog.Nop(),
		now:       time.Now,
		extractor: extract.NewExtractor(),
		metrics:   NewMetrics(),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.open == nil {
		return nil, ErrNoOpener
	}

	if w.registry == nil {
		r, err := notify.NewRegistry(notify.NewLogNotifier(w.logger))
		if err != nil {
			return nil, err
		}
		w.registry = r
	}

	if w.store == nil {
		s, err := store.Open("memory")
		if err != nil {
			return nil, err
		}
		w.store = s
		w.owned = s
	}

	if cfg.RateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return w, nil
}

// Close releases the store when the watcher opened it
func (w *Watcher) Close() error {
	if w.owned != nil {
		return w.owned.Close()
	}
	return nil
}

// Config returns the config the watcher runs
func (w *Watcher) Config() *config.Config {
	return w.cfg
}

// Metrics returns the latencies of every run since New
func (w *Watcher) Metrics() *Metrics {
	return w.metrics
}

// CheckConfig validates the config and checks that every notify type it uses
// has a registered notifier
func (w *Watcher) CheckConfig() error {
	if err := w.cfg.Validate(); err != nil {
		return err
	}

	for _, job := range w.cfg.EnabledJobs() {
		for _, entry := range job.Notify {
			if _, err := w.registry.Get(entry.Type); err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
		}
	}
	return nil
}

// RunJob runs one job to completion. Errors are reported in the result.
func (w *Watcher) RunJob(ctx context.Context, job *config.Job) *JobResult {
	start := w.now()
	res := &JobResult{
		Job:       job.Name,
		URL:       job.URL,
		StartedAt: start,
	}

	log := w.logger.With().Str("job", job.Name).Logger()

	values, err := w.extract(ctx, job)
	if err == nil {
		res.Old, err = w.store.GetValues(ctx, job.Name)
	}

	if err != nil {
		res.fail(err)
		log.Error().Err(err).Msg("job failed")
	} else {
		res.Values = values
		res.Diff = Diff(values, res.Old)
		res.Changed = len(res.Diff) > 0
	}

	w.notify(ctx, job, res, log)

	if res.Err == nil {
		if err := w.store.SetValues(ctx, job.Name, res.Values); err != nil {
			res.fail(err)
			log.Error().Err(err).Msg("failed to store values")
		}
	}

	res.Duration = w.now().Sub(start)
	w.metrics.Record(res.Duration, res.Err)

	run := &store.Run{
		Job:       job.Name,
		StartedAt: start,
		Duration:  res.Duration,
		Changed:   len(res.Diff),
		Error:     res.Error,
	}
	if err := w.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Msg("failed to record run")
	}
	res.RunID = run.ID

	log.Debug().
		Bool("changed", res.Changed).
		Dur("duration", res.Duration).
		Msg("job finished")

	for _, observe := range w.observers {
		observe(res)
	}

	return res
}

// extract opens the page and applies the job's rules. The job timeout
// bounds the rate limiter wait, the page load and the evaluation.
func (w *Watcher) extract(ctx context.Context, job *config.Job) (map[string]string, error) {
	if timeout := w.cfg.JobTimeout(job); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	page, err := w.open(ctx, job.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", job.URL, err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			w.logger.Debug().Err(err).Str("job", job.Name).Msg("failed to close page")
		}
	}()

	rules := job.Items
	if len(rules) == 0 {
		rules = map[string]extract.Rule{config.DefaultItemName: {Kind: extract.KindLabeled}}
	}

	return w.extractor.ExtractAll(ctx, page, rules)
}

// notify dispatches the result to every notify entry whose condition holds.
// A failing notifier does not stop the others.
func (w *Watcher) notify(ctx context.Context, job *config.Job, res *JobResult, log zerolog.Logger) {
	var change *notify.Change

	for _, entry := range job.Notify {
		if !shouldNotify(job, entry, res) {
			continue
		}

		if change == nil {
			change = res.Change()
		}

		n, err := w.registry.Get(entry.Type)
		if err == nil {
			err = n.Notify(ctx, entry.Target, change)
		}
		if err != nil {
			log.Warn().Err(err).Str("notifier", entry.Type).Msg("notification failed")
			res.NotifyErrors = append(res.NotifyErrors, fmt.Sprintf("%s: %v", entry.Type, err))
			continue
		}
		res.Notified = append(res.Notified, entry.Type)
	}
}

func shouldNotify(job *config.Job, entry config.NotifyEntry, res *JobResult) bool {
	switch entry.On {
	case config.NotifyOnAlways:
		return true
	case config.NotifyOnFailure:
		return res.Err != nil
	default:
		if res.Err != nil {
			return false
		}
		return res.Changed || !job.NotifyOnChangeOnly
	}
}

// RunNow runs every enabled job once
func (w *Watcher) RunNow(ctx context.Context) *Report {
	return w.RunJobs(ctx, w.cfg.EnabledJobs())
}

// RunJobs runs jobs with at most Concurrency of them at a time. Results keep
// the order of jobs.
func (w *Watcher) RunJobs(ctx context.Context, jobs []*config.Job) *Report {
	start := w.now()
	results := make([]*JobResult, len(jobs))

	concurrency := w.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *config.Job) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				res := &JobResult{Job: job.Name, URL: job.URL, StartedAt: w.now()}
				res.fail(ctx.Err())
				results[i] = res
				return
			}
			defer func() { <-sem }()

			results[i] = w.RunJob(ctx, job)
		}(i, job)
	}
	wg.Wait()

	return NewReport(results, start, w.now().Sub(start))
}
