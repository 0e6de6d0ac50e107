package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
)

var listCmd = &cobra.Command{
	Use:   "list [watch-file]",
	Short: "List the jobs of a watch file",
	Long: `List every job defined in a watch file with its schedule, URL, items and
notify targets.

Examples:
  pagewatch list
  pagewatch list pagewatch.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s:\n", path)
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		name := job.Name
		if job.Disabled {
			name += " (disabled)"
		}
		fmt.Fprintf(out, "  - %s\n", name)
		fmt.Fprintf(out, "    schedule: %s\n", job.Schedule)
		fmt.Fprintf(out, "    url: %s\n", job.URL)
		fmt.Fprintf(out, "    items: %s\n", describeItems(job))
		if len(job.Notify) > 0 {
			fmt.Fprintf(out, "    notify: %s\n", describeNotify(job))
		}
	}

	return nil
}

func describeItems(job *config.Job) string {
	names := make([]string, 0, len(job.Items))
	for name := range job.Items {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		rule := job.Items[name]
		desc := fmt.Sprintf("%s(%s", name, rule.Kind)
		if rule.Path != "" {
			desc += " " + rule.Path
		}
		parts = append(parts, desc+")")
	}
	return strings.Join(parts, ", ")
}

func describeNotify(job *config.Job) string {
	parts := make([]string, 0, len(job.Notify))
	for _, n := range job.Notify {
		desc := n.Type
		if n.Target != "" {
			desc += ":" + n.Target
		}
		on := n.On
		if on == "" {
			on = config.NotifyOnChange
		}
		parts = append(parts, fmt.Sprintf("%s on %s", desc, on))
	}
	return strings.Join(parts, ", ")
}
