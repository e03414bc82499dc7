package db

import (
	"context"
)

const createRun = `
INSERT INTO runs (session_id, seed, started, finished, pages, record_count, reason, fault)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateRunParams struct {
	SessionID   string
	Seed        string
	Started     int64
	Finished    int64
	Pages       int64
	RecordCount int64
	Reason      string
	Fault       string
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createRun,
		arg.SessionID,
		arg.Seed,
		arg.Started,
		arg.Finished,
		arg.Pages,
		arg.RecordCount,
		arg.Reason,
		arg.Fault,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createRunRecord = `
INSERT INTO run_records (run_id, page, data)
VALUES (?, ?, ?)
`

type CreateRunRecordParams struct {
	RunID int64
	Page  int64
	Data  string
}

func (q *Queries) CreateRunRecord(ctx context.Context, arg CreateRunRecordParams) error {
	_, err := q.db.ExecContext(ctx, createRunRecord, arg.RunID, arg.Page, arg.Data)
	return err
}

const getRun = `
SELECT id, session_id, seed, started, finished, pages, record_count, reason, fault
FROM runs
WHERE id = ?
`

func (q *Queries) GetRun(ctx context.Context, id int64) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var r Run
	err := row.Scan(
		&r.ID,
		&r.SessionID,
		&r.Seed,
		&r.Started,
		&r.Finished,
		&r.Pages,
		&r.RecordCount,
		&r.Reason,
		&r.Fault,
	)
	return r, err
}

const listRuns = `
SELECT id, session_id, seed, started, finished, pages, record_count, reason, fault
FROM runs
ORDER BY started DESC, id DESC
LIMIT ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.Seed,
			&r.Started,
			&r.Finished,
			&r.Pages,
			&r.RecordCount,
			&r.Reason,
			&r.Fault,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const getRunRecords = `
SELECT id, run_id, page, data
FROM run_records
WHERE run_id = ?
ORDER BY id
`

func (q *Queries) GetRunRecords(ctx context.Context, runID int64) ([]RunRecord, error) {
	rows, err := q.db.QueryContext(ctx, getRunRecords, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Page, &r.Data); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const deleteRunRecords = `
DELETE FROM run_records WHERE run_id = ?
`

const deleteRun = `
DELETE FROM runs WHERE id = ?
`

func (q *Queries) DeleteRun(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, deleteRunRecords, id); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, deleteRun, id)
	return err
}
