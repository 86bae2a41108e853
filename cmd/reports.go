package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/isolysis/isocover/internal/store"
)

var (
	reportsLimit  int
	reportsOffset int
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect saved analysis reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		summaries, err := st.ListReports(ctx, store.ReportFilter{Limit: reportsLimit, Offset: reportsOffset})
		if err != nil {
			return eris.Wrap(err, "list reports")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print one saved report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		rep, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get report")
		}
		if rep == nil {
			return eris.Errorf("no report with id %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	reportsListCmd.Flags().IntVar(&reportsLimit, "limit", 20, "maximum reports to list")
	reportsListCmd.Flags().IntVar(&reportsOffset, "offset", 0, "reports to skip")
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	rootCmd.AddCommand(reportsCmd)
}
