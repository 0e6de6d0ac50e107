package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
	"github.com/abdul-hamid-achik/pagewatch/packages/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [job]",
	Short: "Show recorded runs",
	Long: `Show the most recent runs recorded in the store, newest first. Without a
job name the runs of every job are shown. The store is taken from --store,
PAGEWATCH_STORE, or the watch file given with --config.

Examples:
  pagewatch history ip
  pagewatch history --limit 50 --json
  pagewatch history ip --values`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

var (
	limitFlag      int
	historyJSON    bool
	showValuesFlag bool
	configFlag     string
)

func init() {
	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print runs as JSON")
	historyCmd.Flags().BoolVar(&showValuesFlag, "values", false, "Also print the job's stored values")
	historyCmd.Flags().StringVar(&configFlag, "config", getEnvString("PAGEWATCH_CONFIG", ""), "Watch file to take the store from (env: PAGEWATCH_CONFIG)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	if configFlag != "" {
		c, _, err := loadConfig([]string{configFlag})
		if err != nil {
			return err
		}
		cfg = c
	}

	st, err := openStore(settings, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	job := ""
	if len(args) > 0 {
		job = args[0]
	}

	runs, err := st.ListRuns(cmd.Context(), job, limitFlag)
	if err != nil {
		return withExitCode(ExitNetworkError, err)
	}

	var values map[string]string
	if showValuesFlag && job != "" {
		if values, err = st.GetValues(cmd.Context(), job); err != nil {
			return withExitCode(ExitNetworkError, err)
		}
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Runs   []store.Run       `json:"runs"`
			Values map[string]string `json:"values,omitempty"`
		}{Runs: runs, Values: values})
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tJOB\tDURATION\tCHANGED\tERROR")
		for _, r := range runs {
			errText := ""
			if r.Error != "" {
				errText = color.RedString(r.Error)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				r.StartedAt.Local().Format(time.DateTime),
				r.Job,
				r.Duration.Round(time.Millisecond),
				r.Changed,
				errText,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if values != nil {
		fmt.Fprintf(out, "\nValues of %s:\n", job)
		for _, item := range sortedKeys(values) {
			fmt.Fprintf(out, "  %s: %q\n", item, values[item])
		}
	}

	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
