// Package runstore persists finished scrape sessions to sqlite so
// past runs can be listed, re-exported and analyzed later.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"webharvest/lib/runstore/db"
	"webharvest/lib/scrape"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// Run is the stored outcome of one crawl, without its records.
type Run struct {
	Id          int64
	SessionId   string
	Seed        string
	Started     time.Time
	Finished    time.Time
	Pages       int
	RecordCount int
	Reason      scrape.StopReason
	Fault       string
}

func runFromRow(row db.Run) Run {
	return Run{
		Id:          row.ID,
		SessionId:   row.SessionID,
		Seed:        row.Seed,
		Started:     time.Unix(row.Started, 0),
		Finished:    time.Unix(row.Finished, 0),
		Pages:       int(row.Pages),
		RecordCount: int(row.RecordCount),
		Reason:      scrape.StopReason(row.Reason),
		Fault:       row.Fault,
	}
}

// SaveSession writes the session and all of its records in one
// transaction and returns the new run id.
func (s Store) SaveSession(ctx context.Context, session *scrape.Session) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	fault := ""
	if session.Fault != nil {
		fault = session.Fault.Error()
	}
	runId, err := txqry.CreateRun(ctx, db.CreateRunParams{
		SessionID:   session.Id,
		Seed:        session.Seed,
		Started:     session.Started.Unix(),
		Finished:    session.Finished.Unix(),
		Pages:       int64(session.Pages),
		RecordCount: int64(len(session.Records)),
		Reason:      string(session.Reason),
		Fault:       fault,
	})
	if err != nil {
		return 0, err
	}

	for _, record := range session.Records {
		data, err := json.Marshal(record)
		if err != nil {
			return 0, fmt.Errorf("marshal record: %w", err)
		}
		err = txqry.CreateRunRecord(ctx, db.CreateRunRecordParams{
			RunID: runId,
			Page:  int64(record.Page),
			Data:  string(data),
		})
		if err != nil {
			return 0, err
		}
	}

	return runId, tx.Commit()
}

func (s Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.qry.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Run, len(rows))
	for i, row := range rows {
		out[i] = runFromRow(row)
	}
	return out, nil
}

func (s Store) GetRun(ctx context.Context, id int64) (Run, error) {
	row, err := s.qry.GetRun(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return runFromRow(row), nil
}

// GetRecords loads the records of a run in the order they were
// extracted.
func (s Store) GetRecords(ctx context.Context, id int64) ([]scrape.Record, error) {
	rows, err := s.qry.GetRunRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	records := make([]scrape.Record, len(rows))
	for i, row := range rows {
		if err := json.Unmarshal([]byte(row.Data), &records[i]); err != nil {
			return nil, fmt.Errorf("unmarshal record %d: %w", row.ID, err)
		}
	}
	return records, nil
}

func (s Store) DeleteRun(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.qry.WithTx(tx).DeleteRun(ctx, id); err != nil {
		return err
	}
	return tx.Commit()
}
