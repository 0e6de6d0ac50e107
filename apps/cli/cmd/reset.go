package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/pagewatch/packages/core/config"
)

var resetCmd = &cobra.Command{
	Use:   "reset <job>...",
	Short: "Forget the stored values of jobs",
	Long: `Delete the stored values of the named jobs. The next run of a reset job
reports every extracted item as changed. Run history is kept.

Examples:
  pagewatch reset ip
  pagewatch reset ip release --store sqlite://./pagewatch.db`,
	Args: cobra.MinimumNArgs(1),
	RunE: resetCommand,
}

func init() {
	resetCmd.Flags().StringVar(&configFlag, "config", getEnvString("PAGEWATCH_CONFIG", ""), "Watch file to take the store from (env: PAGEWATCH_CONFIG)")
}

func resetCommand(cmd *cobra.Command, args []string) error {
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

	for _, job := range args {
		if err := st.DeleteValues(cmd.Context(), job); err != nil {
			return withExitCode(ExitNetworkError, err)
		}
		logger.Debug().Str("job", job).Msg("values reset")
		fmt.Fprintf(cmd.OutOrStdout(), "Reset: %s\n", job)
	}
	return nil
}
