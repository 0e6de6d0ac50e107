package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/pagewatch/packages/browser"
	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
	"github.com/abdul-hamid-achik/pagewatch/packages/core/env"
	"github.com/abdul-hamid-achik/pagewatch/packages/notify"
	"github.com/abdul-hamid-achik/pagewatch/packages/store"
	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

// DefaultStore is used when neither the flags, the environment nor the watch
// file name a store
const DefaultStore = "sqlite://pagewatch.db"

// resolveConfigPath returns the first argument, or the watch file found in
// the working directory
func resolveConfigPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := config.FindConfig(cwd)
	if err != nil {
		return "", withExitCode(ExitUsageError, err)
	}
	return path, nil
}

// loadConfig loads and validates the watch file named by args
func loadConfig(args []string) (*config.Config, string, error) {
	path, err := resolveConfigPath(args)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			return nil, path, withExitCode(ExitConfigError, err)
		}
		return nil, path, withExitCode(ExitParseError, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, withExitCode(ExitConfigError, err)
	}
	return cfg, path, nil
}

// storeConnection picks the store: flags and environment win over the file
func storeConnection(s *env.Settings, cfg *config.Config) string {
	if s.Store != "" {
		return s.Store
	}
	if cfg != nil && cfg.Store != "" {
		return cfg.Store
	}
	return DefaultStore
}

func openStore(s *env.Settings, cfg *config.Config) (*store.Store, error) {
	conn := storeConnection(s, cfg)
	st, err := store.Open(conn)
	if err != nil {
		return nil, withExitCode(ExitNetworkError, err)
	}
	return st, nil
}

// buildRegistry registers the log notifier, plus Slack when a webhook is
// configured and mail when an SMTP host is. Teams is always available since a
// target may carry the webhook.
func buildRegistry(s *env.Settings, log zerolog.Logger) (*notify.Registry, error) {
	notifiers := []notify.Notifier{
		notify.NewLogNotifier(log),
		notify.NewTeamsNotifier(s.TeamsWebhook),
	}
	if s.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(s.SlackWebhook, notify.WithSlackChannel(s.SlackChannel)))
	}
	if s.SMTPHost != "" {
		sender := notify.NewSMTPSender(s.SMTPHost, s.SMTPPort, s.SMTPUser, s.SMTPPass)
		notifiers = append(notifiers, notify.NewMailNotifier(s.MailFrom, sender))
	}
	return notify.NewRegistry(notifiers...)
}

// browserOptions merges the watch file's browser section with the environment
func browserOptions(s *env.Settings, cfg *config.Config) browser.Options {
	opts := browser.DefaultOptions()
	opts.Bin = cfg.Browser.Bin
	opts.ControlURL = cfg.Browser.ControlURL
	opts.Headless = cfg.Browser.GetHeadless()
	opts.NoSandbox = cfg.Browser.GetNoSandbox()
	opts.WaitStable = cfg.Browser.GetWaitStable()
	opts.UserAgent = cfg.Browser.UserAgent
	if cfg.GetTimeout() > 0 {
		opts.Timeout = cfg.GetTimeout()
	}

	if s.BrowserBin != "" {
		opts.Bin = s.BrowserBin
	}
	if s.BrowserURL != "" {
		opts.ControlURL = s.BrowserURL
	}
	if s.NoSandbox {
		opts.NoSandbox = true
	}
	return opts
}

// lazyBrowser launches the browser on the first page open, so commands that
// never open a page never start one
type lazyBrowser struct {
	ctx  context.Context
	opts browser.Options

	once    sync.Once
	mu      sync.Mutex
	session *browser.Session
	err     error
}

func newLazyBrowser(ctx context.Context, opts browser.Options) *lazyBrowser {
	return &lazyBrowser{ctx: ctx, opts: opts}
}

// Open implements watcher.PageOpener
func (b *lazyBrowser) Open(ctx context.Context, url string) (watcher.Page, error) {
	b.once.Do(func() {
		session, err := browser.Launch(b.ctx, b.opts)
		b.mu.Lock()
		b.session, b.err = session, err
		b.mu.Unlock()
	})
	if b.err != nil {
		return nil, b.err
	}

	page, err := b.session.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (b *lazyBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

// jobRuntime bundles what a command needs to run jobs
type jobRuntime struct {
	watcher *watcher.Watcher
	store   *store.Store
	browser *lazyBrowser
}

// newRuntime opens the store, prepares the browser and builds a watcher.
// The notifier setup is checked against the watch file before returning.
func newRuntime(ctx context.Context, cfg *config.Config, opts ...watcher.Option) (*jobRuntime, error) {
	registry, err := buildRegistry(settings, logger)
	if err != nil {
		return nil, err
	}

	st, err := openStore(settings, cfg)
	if err != nil {
		return nil, err
	}

	b := newLazyBrowser(ctx, browserOptions(settings, cfg))
	opts = append([]watcher.Option{
		watcher.WithStore(st),
		watcher.WithPageOpener(b.Open),
		watcher.WithRegistry(registry),
		watcher.WithLogger(logger),
	}, opts...)

	w, err := watcher.New(cfg, opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := w.CheckConfig(); err != nil {
		_ = st.Close()
		return nil, withExitCode(ExitConfigError, err)
	}

	return &jobRuntime{watcher: w, store: st, browser: b}, nil
}

func (r *jobRuntime) Close() error {
	var errs []error
	if err := r.watcher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := r.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
