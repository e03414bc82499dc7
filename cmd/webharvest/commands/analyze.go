package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"webharvest/lib/analyze"
	"webharvest/lib/runstore"
	"webharvest/lib/runstore/db"
	"webharvest/lib/scrape"
	"webharvest/lib/sqliteutil"
	"webharvest/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var (
	analyzeDb     *string
	analyzeKey    *string
	analyzeText   *string
	analyzeTop    *int
	analyzeMerge  *bool
	analyzeIgnore *[]string
)

func init() {
	analyzeDb = analyzeCmd.Flags().String("db", "runs.db", "The database runs were recorded in.")
	analyzeKey = analyzeCmd.Flags().String("key", "", "The field to rank by, defaults to the first field.")
	analyzeText = analyzeCmd.Flags().String("text", "", "The field to pick shortest/longest entries from.")
	analyzeTop = analyzeCmd.Flags().Int("top", 10, "The ranking length.")
	analyzeMerge = analyzeCmd.Flags().Bool("merge", false, "Fold near-identical key spellings into one entry.")
	analyzeIgnore = analyzeCmd.Flags().StringSlice("ignore", nil, "Drop key values containing these keywords from the ranking.")
	rootCmd.AddCommand(analyzeCmd)
}

func sessionFromStore(ctx context.Context, store runstore.Store, id int64) (*scrape.Session, error) {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", id, err)
	}
	records, err := store.GetRecords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load records of run %d: %w", id, err)
	}
	return &scrape.Session{
		Id:      run.SessionId,
		Seed:    run.Seed,
		Records: records,
		Pages:   run.Pages,
		Reason:  run.Reason,
	}, nil
}

func sessionFromFile(path string) (*scrape.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []scrape.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	session := &scrape.Session{Seed: path, Records: records}
	for _, record := range records {
		if record.Page > session.Pages {
			session.Pages = record.Page
		}
	}
	return session, nil
}

func loadSession(ctx context.Context, args []string) (*scrape.Session, error) {
	if len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			database, err := sqliteutil.OpenDB(db.Schema, *analyzeDb)
			if err != nil {
				return nil, err
			}
			defer database.Close()
			return sessionFromStore(ctx, runstore.NewStore(database), id)
		}
		return sessionFromFile(args[0])
	}

	database, err := sqliteutil.OpenDB(db.Schema, *analyzeDb)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	store := runstore.NewStore(database)

	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no stored runs in %s", *analyzeDb)
	}
	return sessionFromStore(ctx, store, runs[0].Id)
}

func renderCounts(title string, counts []analyze.Count) {
	if len(counts) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{title, "Count"})
	for _, c := range counts {
		t.AppendRow(table.Row{c.Value, c.Count})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [run-id | path/to/records.json]",
	Short: "Ranks field values and tags over a stored run or an exported json file.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		session, err := loadSession(cmd.Context(), args)
		if err != nil {
			serviceutil.Fatal("failed to load records", err)
		}

		key := *analyzeKey
		if key == "" && len(session.Records) > 0 && len(session.Records[0].Fields) > 0 {
			key = session.Records[0].Fields[0].Name
		}

		report := analyze.Session(session, analyze.Options{
			KeyField:     key,
			TextField:    *analyzeText,
			Top:          *analyzeTop,
			MergeSimilar: *analyzeMerge,
			Ignore:       *analyzeIgnore,
		})

		fmt.Printf("source: %s\nrecords: %d\npages: %d\n", session.Seed, report.Total, report.Pages)
		if report.Shortest != "" {
			fmt.Printf("shortest %s: %s\n", *analyzeText, report.Shortest)
			fmt.Printf("longest %s: %s\n", *analyzeText, report.Longest)
		}
		renderCounts(key, report.TopKeys)
		renderCounts("Tag", report.TopTags)
	},
}
