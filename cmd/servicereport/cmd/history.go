package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/servicereport/internal/history"
	"github.com/Aman-CERP/servicereport/internal/report"
)

func newHistoryCmd(o *options, d deps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Long: `Show the most recent validation and repair runs recorded on this
host, newest first, with the checks that did not pass.`,
		Example: `  # Last 10 runs
  servicereport history

  # Last 3 runs as JSON
  servicereport history -n 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(o, d)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			p := report.New(cmd.OutOrStdout(), report.Options{
				Styles: report.GetStyles(cfg.Report.Color, cmd.OutOrStdout()),
			})
			if o.jsonOutput {
				return p.HistoryJSON(runs)
			}
			p.History(runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "number", "n", 10, "number of runs to show")

	return cmd
}
