package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
	"github.com/abdul-hamid-achik/pagewatch/packages/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Print the value extracted from a single page",
	Long: `Open one page in the browser and print the value found in its text.
By default this is the labeled value: the text between the first and the
second ":" of the page body. Nothing is stored and nobody is notified.

Examples:
  pagewatch extract https://example.com/ip
  pagewatch extract https://example.com/status.json --kind json --path build.version`,
	Args: cobra.ExactArgs(1),
	RunE: extractCommand,
}

var (
	kindFlag    string
	pathFlag    string
	trimFlag    bool
	timeoutFlag time.Duration
)

func init() {
	extractCmd.Flags().StringVar(&kindFlag, "kind", string(extract.KindLabeled), "Extraction kind: labeled, text, json")
	extractCmd.Flags().StringVar(&pathFlag, "path", "", "gjson path for --kind json")
	extractCmd.Flags().BoolVar(&trimFlag, "trim", false, "Trim surrounding whitespace from the value")
	extractCmd.Flags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Time allowed to load and evaluate the page")
}

func extractCommand(cmd *cobra.Command, args []string) error {
	kind, err := extract.ParseKind(kindFlag)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	rule := extract.Rule{Kind: kind, Path: pathFlag, Trim: trimFlag}
	url := args[0]

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := browserOptions(settings, &config.Config{})
	if timeoutFlag > 0 {
		opts.Timeout = timeoutFlag
	}
	b := newLazyBrowser(ctx, opts)
	defer b.Close()

	value, ok, err := extractOnce(ctx, b, url, rule)
	if err != nil {
		if extract.IsEvaluationFailure(err) {
			return withExitCode(ExitJobFailure, err)
		}
		return withExitCode(ExitNetworkError, err)
	}
	if !ok {
		return withExitCode(ExitJobFailure, errors.New("no value found"))
	}

	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func extractOnce(ctx context.Context, b *lazyBrowser, url string, rule extract.Rule) (string, bool, error) {
	if timeoutFlag > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutFlag)
		defer cancel()
	}

	page, err := b.Open(ctx, url)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", url, err)
	}
	defer page.Close()

	logger.Debug().Str("url", url).Str("kind", string(rule.Kind)).Msg("extracting")
	return extract.NewExtractor().Extract(ctx, page, rule)
}
