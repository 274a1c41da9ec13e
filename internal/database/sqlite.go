package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chdiff/internal/chdiff"
	"chdiff/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation statuses.
const (
	StatusRunning     = "running"
	StatusSuccess     = "success"
	StatusDifferences = "differences"
	StatusError       = "error"
)

// SQLiteDatabase stores the run history in SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *Queries
	path    string
	now     func() time.Time
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{
		db:      db,
		queries: New(db),
		path:    path,
		now:     time.Now,
	}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Operation tracking

// CreateOperation records the start of a CLI run.
func (s *SQLiteDatabase) CreateOperation(runID, operation, parameters string) (*Operation, error) {
	op, err := s.queries.InsertOperation(context.Background(), InsertOperationParams{
		RunID:      runID,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  s.now(),
		Status:     StatusRunning,
	})
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return &op, nil
}

// FinishOperation stamps the end time and final status of a run.
func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	n, err := s.queries.UpdateOperationFinished(context.Background(), UpdateOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: s.now(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (s *SQLiteDatabase) ListOperations(limit int) ([]*Operation, error) {
	ops, err := s.queries.GetOperations(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	result := make([]*Operation, len(ops))
	for i := range ops {
		result[i] = &ops[i]
	}
	return result, nil
}

// Snapshot history

// RecordSnapshot stores a completed snapshot.
func (s *SQLiteDatabase) RecordSnapshot(rec *chdiff.SnapshotRecord) error {
	err := s.queries.InsertSnapshot(context.Background(), Snapshot{
		ID:        rec.ID,
		RunID:     rec.RunID,
		Target:    rec.Target,
		Name:      rec.Name,
		Previous:  rec.Previous,
		Method:    string(rec.Method),
		NewFiles:  int64(rec.New),
		Modified:  int64(rec.Modified),
		Unchanged: int64(rec.Unchanged),
		Deleted:   int64(rec.Deleted),
		Failed:    int64(rec.Failed),
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the recorded snapshots of a target, newest first.
func (s *SQLiteDatabase) ListSnapshots(target string, limit int) ([]*chdiff.SnapshotRecord, error) {
	rows, err := s.queries.GetSnapshotsByTarget(context.Background(), target, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	result := make([]*chdiff.SnapshotRecord, len(rows))
	for i, r := range rows {
		result[i] = &chdiff.SnapshotRecord{
			ID:        r.ID,
			RunID:     r.RunID,
			Target:    r.Target,
			Name:      r.Name,
			Previous:  r.Previous,
			Method:    chdiff.Method(r.Method),
			New:       int(r.NewFiles),
			Modified:  int(r.Modified),
			Unchanged: int(r.Unchanged),
			Deleted:   int(r.Deleted),
			Failed:    int(r.Failed),
			CreatedAt: r.CreatedAt,
		}
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements chdiff.History interface
var _ chdiff.History = (*SQLiteDatabase)(nil)
