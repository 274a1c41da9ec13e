package database

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements of the history database.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const operationColumns = `id, run_id, operation, parameters, started_at, finished_at, status`

const insertOperation = `INSERT INTO operations (run_id, operation, parameters, started_at, status)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + operationColumns

type InsertOperationParams struct {
	RunID      string
	Operation  string
	Parameters string
	StartedAt  time.Time
	Status     string
}

func (q *Queries) InsertOperation(ctx context.Context, arg InsertOperationParams) (Operation, error) {
	row := q.db.QueryRowContext(ctx, insertOperation,
		arg.RunID, arg.Operation, arg.Parameters, arg.StartedAt, arg.Status)
	return scanOperation(row)
}

const updateOperationFinished = `UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`

type UpdateOperationFinishedParams struct {
	FinishedAt sql.NullTime
	Status     string
	ID         int64
}

func (q *Queries) UpdateOperationFinished(ctx context.Context, arg UpdateOperationFinishedParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateOperationFinished, arg.FinishedAt, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getOperations = `SELECT ` + operationColumns + `
FROM operations
ORDER BY id DESC
LIMIT ?`

func (q *Queries) GetOperations(ctx context.Context, limit int64) ([]Operation, error) {
	rows, err := q.db.QueryContext(ctx, getOperations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Operation
	for rows.Next() {
		i, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const snapshotColumns = `id, run_id, target, name, previous, method,
new_files, modified, unchanged, deleted, failed, created_at`

const insertSnapshot = `INSERT INTO snapshots (` + snapshotColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertSnapshot(ctx context.Context, arg Snapshot) error {
	_, err := q.db.ExecContext(ctx, insertSnapshot,
		arg.ID, arg.RunID, arg.Target, arg.Name, arg.Previous, arg.Method,
		arg.NewFiles, arg.Modified, arg.Unchanged, arg.Deleted, arg.Failed, arg.CreatedAt)
	return err
}

const getSnapshotsByTarget = `SELECT ` + snapshotColumns + `
FROM snapshots
WHERE target = ?
ORDER BY name DESC
LIMIT ?`

func (q *Queries) GetSnapshotsByTarget(ctx context.Context, target string, limit int64) ([]Snapshot, error) {
	rows, err := q.db.QueryContext(ctx, getSnapshotsByTarget, target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Snapshot
	for rows.Next() {
		var i Snapshot
		if err := rows.Scan(
			&i.ID, &i.RunID, &i.Target, &i.Name, &i.Previous, &i.Method,
			&i.NewFiles, &i.Modified, &i.Unchanged, &i.Deleted, &i.Failed, &i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (Operation, error) {
	var i Operation
	err := row.Scan(&i.ID, &i.RunID, &i.Operation, &i.Parameters, &i.StartedAt, &i.FinishedAt, &i.Status)
	return i, err
}
