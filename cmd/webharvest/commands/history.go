package commands

import (
	"os"
	"time"
	"webharvest/lib/runstore"
	"webharvest/lib/runstore/db"
	"webharvest/lib/sqliteutil"
	"webharvest/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var (
	historyDb    *string
	historyLimit *int
)

func init() {
	historyDb = historyCmd.Flags().String("db", "runs.db", "The database runs were recorded in.")
	historyLimit = historyCmd.Flags().Int("limit", 20, "The maximum number of runs to list.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--db <path/to/runs.db>]",
	Short: "Lists stored runs, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := sqliteutil.OpenDB(db.Schema, *historyDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		runs, err := runstore.NewStore(database).ListRuns(cmd.Context(), *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Seed", "Started", "Pages", "Records", "Reason"})
		for _, run := range runs {
			reason := string(run.Reason)
			if run.Fault != "" {
				reason = run.Fault
			}
			t.AppendRow(table.Row{
				run.Id,
				run.Seed,
				run.Started.Format(time.DateTime),
				run.Pages,
				run.RecordCount,
				reason,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
