package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	"webharvest/lib/configutil"
	"webharvest/lib/notify"
	"webharvest/lib/runstore"
	"webharvest/lib/runstore/db"
	"webharvest/lib/scrape"
	"webharvest/lib/sink"
	"webharvest/lib/sqliteutil"
	"webharvest/lib/util/serviceutil"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

// JobConfig is the json5 job description the run command executes.
type JobConfig struct {
	Seed           string            `json:"seed"`
	ItemSelector   string            `json:"itemSelector"`
	Fields         []scrape.Field    `json:"fields"`
	NextSelector   string            `json:"nextSelector"`
	TagSelector    string            `json:"tagSelector"`
	Headers        map[string]string `json:"headers"`
	DelaySeconds   float64           `json:"delaySeconds"`
	TimeoutSeconds float64           `json:"timeoutSeconds"`
	// MaxPages left unset crawls until the last page.
	MaxPages         int                `json:"maxPages"`
	Fetcher          string             `json:"fetcher"`
	UserAgent        string             `json:"userAgent"`
	CloudflareBypass bool               `json:"cloudflareBypass"`
	DebugHttpDir     string             `json:"debugHttpDir"`
	KeyField         string             `json:"keyField"`
	Database         *sqliteutil.Struct `json:"database"`
	Smtp             *notify.SmtpConfig `json:"smtp"`
	Recipients       []string           `json:"recipients"`
}

func (c JobConfig) job() scrape.Job {
	return scrape.Job{
		Seed:         c.Seed,
		ItemSelector: c.ItemSelector,
		Fields:       scrape.FieldSpec(c.Fields),
		NextSelector: c.NextSelector,
		TagSelector:  c.TagSelector,
		Headers:      c.Headers,
		Delay:        time.Duration(c.DelaySeconds * float64(time.Second)),
		Timeout:      time.Duration(c.TimeoutSeconds * float64(time.Second)),
		MaxPages:     c.MaxPages,
	}
}

// openRunDb prefers the config's database block over the --db flag.
func openRunDb(cfg JobConfig) (*sql.DB, error) {
	if cfg.Database != nil {
		return cfg.Database.OpenDB(db.Schema)
	}
	return sqliteutil.OpenDB(db.Schema, *runDb)
}

func newFetcher(kind string, opts scrape.FetcherOptions) (scrape.Fetcher, error) {
	switch kind {
	case "", "resty":
		return scrape.NewRestyFetcher(opts)
	case "colly":
		return scrape.NewCollyFetcher(opts), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", kind)
	}
}

var (
	runConfig  *string
	runDb      *string
	runJson    *string
	runCsv     *string
	runTxt     *string
	runSummary *bool
)

func init() {
	runConfig = runCmd.Flags().String("config", "job.json5", "The job config to execute.")
	runDb = runCmd.Flags().String("db", "runs.db", "The database to record the run in, empty disables.")
	runJson = runCmd.Flags().String("json", "", "Write records to this json file.")
	runCsv = runCmd.Flags().String("csv", "", "Write records to this csv file.")
	runTxt = runCmd.Flags().String("txt", "", "Write the summary to this text file.")
	runSummary = runCmd.Flags().Bool("summary", true, "Print a summary to stdout.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--config <path/to/job.json5>]",
	Short: "Executes a scrape job and writes the configured outputs.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[JobConfig](*runConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		job := cfg.job()

		fetcher, err := newFetcher(cfg.Fetcher, scrape.FetcherOptions{
			UserAgent:        cfg.UserAgent,
			CloudflareBypass: cfg.CloudflareBypass,
			DebugDir:         cfg.DebugHttpDir,
		})
		if err != nil {
			serviceutil.Fatal("failed to build fetcher", err)
		}
		pipeline := scrape.NewPipeline(fetcher)

		t1 := time.Now()
		session, err := pipeline.Run(cmd.Context(), job)
		if err != nil {
			serviceutil.Fatal("invalid job", err)
		}
		slog.Info("scrape finished",
			"records", len(session.Records),
			"pages", session.Pages,
			"reason", session.Reason,
			"seconds", time.Since(t1).Seconds())
		if session.Fault != nil {
			slog.Warn("scrape stopped on a fetch fault", "err", session.Fault.Error())
		}

		fields := job.Fields.Names()
		summaryOpts := sink.SummaryOptions{
			Fields:   fields,
			KeyField: cfg.KeyField,
		}
		var sinks []sink.Sink
		var closers []io.Closer
		if *runJson != "" {
			f, err := os.Create(*runJson)
			if err != nil {
				serviceutil.Fatal("failed to create json output", err)
			}
			closers = append(closers, f)
			sinks = append(sinks, sink.NewJsonSink(f))
		}
		if *runCsv != "" {
			f, err := os.Create(*runCsv)
			if err != nil {
				serviceutil.Fatal("failed to create csv output", err)
			}
			closers = append(closers, f)
			sinks = append(sinks, sink.NewCsvSink(f, fields))
		}
		if *runTxt != "" {
			f, err := os.Create(*runTxt)
			if err != nil {
				serviceutil.Fatal("failed to create summary output", err)
			}
			closers = append(closers, f)
			sinks = append(sinks, sink.NewSummarySink(f, summaryOpts))
		}
		if *runSummary {
			sinks = append(sinks, sink.NewSummarySink(os.Stdout, summaryOpts))
		}

		err = sink.MultiSink(sinks...).Write(session)
		for _, c := range closers {
			c.Close()
		}
		if err != nil {
			serviceutil.Fatal("failed to write outputs", err)
		}

		// saving and notifying still happen after Ctrl+C cancels the
		// crawl, so partial records are never lost
		if *runDb != "" || cfg.Database != nil {
			database, err := openRunDb(cfg)
			if err != nil {
				serviceutil.Fatal("failed to open db", err)
			}
			defer database.Close()

			id, err := runstore.NewStore(database).SaveSession(context.Background(), session)
			if err != nil {
				serviceutil.Fatal("failed to save run", err)
			}
			slog.Info("saved run", "id", id, "session", session.Id)
		}

		if cfg.Smtp != nil && len(cfg.Recipients) > 0 {
			notifier := notify.NewNotifier(notify.Options{
				Smtp:       *cfg.Smtp,
				Recipients: cfg.Recipients,
			})
			err := notifier.SessionFinished(context.Background(), session, fields)
			if err != nil {
				slog.Warn("failed to send notification", "err", err.Error())
			}
		}
	},
}
