package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/env"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	verboseFlag   bool
	logFormatFlag string
	noColorFlag   bool
	storeFlag     string
	envFileFlag   string

	settings = &env.Settings{}
	logger   = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "pagewatch",
	Short: "Watch web pages for changing values.",
	Long: `pagewatch renders web pages in a headless browser, extracts labeled
values such as "Price: 42" from their text, and notifies you when a value
changes. Jobs are described in a YAML or JSON watch file and run on cron
schedules.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits with the command's exit code
func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: console, json (env: PAGEWATCH_LOG_FORMAT)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: PAGEWATCH_NO_COLOR)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Value store: sqlite://path, postgres://..., memory (env: PAGEWATCH_STORE)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "Path to .env file for ${VAR} expansion (env: PAGEWATCH_ENV_FILE)")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}

// setup reads the environment and a .env file, applies the persistent flags
// on top, and configures logging.
func setup(cmd *cobra.Command, _ []string) error {
	s, err := env.LoadSettings()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	envFile := s.EnvFile
	if cmd.Flags().Changed("env-file") {
		envFile = envFileFlag
	}
	if envFile != "" {
		if _, err := env.LoadAndExportDotEnv(envFile); err != nil {
			return withExitCode(ExitConfigError, err)
		}
		if s, err = env.LoadSettings(); err != nil {
			return withExitCode(ExitConfigError, err)
		}
		s.EnvFile = envFile
	}

	flags := cmd.Flags()
	if flags.Changed("log-format") {
		s.LogFormat = logFormatFlag
	}
	if flags.Changed("no-color") {
		s.NoColor = noColorFlag
	}
	if flags.Changed("store") {
		s.Store = storeFlag
	}
	if verboseFlag {
		s.LogLevel = zerolog.LevelDebugValue
	}
	settings = s

	if s.NoColor {
		color.NoColor = true
	}

	l, err := newLogger(os.Stderr, s)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	logger = l
	return nil
}

func newLogger(w io.Writer, s *env.Settings) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	switch strings.ToLower(s.LogFormat) {
	case "json":
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: s.NoColor}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q: must be console or json", s.LogFormat)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
