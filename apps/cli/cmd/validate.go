package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/watcher"
)

var validateCmd = &cobra.Command{
	Use:   "validate [watch-file]",
	Short: "Check a watch file without opening any page",
	Long: `Check a watch file against the schema, parse every schedule and make sure
every notify type has a configured notifier. No page is opened.

Examples:
  pagewatch validate
  pagewatch validate pagewatch.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(args)
	if err != nil {
		if path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", path, err)
		}
		return err
	}

	registry, err := buildRegistry(settings, logger)
	if err != nil {
		return err
	}

	// The opener is never called: CheckConfig only inspects the config
	w, err := watcher.New(cfg,
		watcher.WithRegistry(registry),
		watcher.WithLogger(logger),
		watcher.WithPageOpener(func(ctx context.Context, url string) (watcher.Page, error) {
			return nil, watcher.ErrNoOpener
		}),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.CheckConfig(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", path, err)
		return withExitCode(ExitConfigError, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d jobs, %d enabled)\n", path, len(cfg.Jobs), len(cfg.EnabledJobs()))
	return nil
}
