package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
	"github.com/abdul-hamid-achik/pagewatch/packages/export/metrics"
	"github.com/abdul-hamid-achik/pagewatch/packages/server"
	"github.com/abdul-hamid-achik/pagewatch/packages/store"
	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [watch-file]",
	Short: "Run jobs on their schedules until interrupted",
	Long: `Start the scheduler: every enabled job runs on its cron schedule. Editing
the watch file reloads it and restarts the scheduler. SIGINT or SIGTERM stops
the daemon after running jobs finish.

Examples:
  pagewatch watch
  pagewatch watch pagewatch.yaml --listen :8080
  pagewatch watch pagewatch.yaml --run-now`,
	Args: cobra.MaximumNArgs(1),
	RunE: watchCommand,
}

var (
	listenFlag string
	runNowFlag bool
)

func init() {
	watchCmd.Flags().StringVar(&listenFlag, "listen", getEnvString("PAGEWATCH_LISTEN", ""), "Serve health, metrics and job state on this address (env: PAGEWATCH_LISTEN)")
	watchCmd.Flags().BoolVar(&runNowFlag, "run-now", getEnvBool("PAGEWATCH_RUN_NOW", false), "Run every job once when the scheduler (re)starts (env: PAGEWATCH_RUN_NOW)")
}

func watchCommand(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, err := buildRegistry(settings, logger)
	if err != nil {
		return err
	}

	st, err := openStore(settings, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	b := newLazyBrowser(ctx, browserOptions(settings, cfg))
	defer b.Close()

	collector := metrics.NewCollector()
	defer collector.Close()

	serveErr := make(chan error, 1)
	if listenFlag != "" {
		srv := server.New(listenFlag, st, collector, logger)
		go func() {
			serveErr <- srv.ListenAndServe(ctx)
		}()
	}

	reload := make(chan struct{}, 1)
	go func() {
		err := watchFile(ctx, path, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
		if err != nil {
			logger.Error().Err(err).Msg("config reload disabled")
		}
	}()

	build := func(cfg *config.Config) (*watcher.Watcher, error) {
		w, err := watcher.New(cfg,
			watcher.WithStore(st),
			watcher.WithPageOpener(b.Open),
			watcher.WithRegistry(registry),
			watcher.WithLogger(logger),
			watcher.WithObserver(collector.Observe),
		)
		if err != nil {
			return nil, err
		}
		if err := w.CheckConfig(); err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		return w, nil
	}

	w, err := build(cfg)
	if err != nil {
		return err
	}

	for {
		if runNowFlag {
			w.RunNow(ctx)
		}

		schedCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- w.Schedule(schedCtx)
		}()

		select {
		case <-ctx.Done():
			stop()
			<-done
			logger.Info().Msg("stopped")
			return nil

		case err := <-serveErr:
			stop()
			<-done
			if err == nil {
				return nil
			}
			return withExitCode(ExitNetworkError, fmt.Errorf("status server: %w", err))

		case err := <-done:
			stop()
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return withExitCode(ExitConfigError, err)

		case <-reload:
			stop()
			<-done

			next, err := reloadConfig(path, cfg, build)
			if err != nil {
				logger.Error().Err(err).Str("file", path).Msg("reload failed, keeping the previous jobs")
				continue
			}
			cfg, w = next.cfg, next.watcher
			logger.Info().Str("file", path).Int("jobs", len(cfg.EnabledJobs())).Msg("watch file reloaded")
		}
	}
}

type reloaded struct {
	cfg     *config.Config
	watcher *watcher.Watcher
}

// reloadConfig loads path again and builds a watcher for it. The store and
// browser stay as they were started; changes to them need a restart.
func reloadConfig(path string, prev *config.Config, build func(*config.Config) (*watcher.Watcher, error)) (*reloaded, error) {
	cfg, _, err := loadConfig([]string{path})
	if err != nil {
		return nil, err
	}
	if storeConnection(settings, cfg) != storeConnection(settings, prev) {
		logger.Warn().Msg("store changed in watch file, restart to apply")
	}
	if browserOptions(settings, cfg) != browserOptions(settings, prev) {
		logger.Warn().Msg("browser settings changed in watch file, restart to apply")
	}

	w, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return &reloaded{cfg: cfg, watcher: w}, nil
}

var (
	_ server.RunStore = (*store.Store)(nil)
	_ watcher.Store   = (*store.Store)(nil)
)
