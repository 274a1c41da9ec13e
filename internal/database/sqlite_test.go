package database

import (
	"path/filepath"
	"testing"
	"time"

	"chdiff/internal/chdiff"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	t.Run("create and finish", func(t *testing.T) {
		db := newTestDB(t)

		op, err := db.CreateOperation("run-1", "backup", "/src /dest")
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		if op.ID == 0 || op.Status != StatusRunning || op.FinishedAt.Valid {
			t.Errorf("CreateOperation() = %+v, want running operation with id", op)
		}

		if err := db.FinishOperation(op.ID, StatusSuccess); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		ops, err := db.ListOperations(10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("ListOperations() returned %d operations, want 1", len(ops))
		}
		got := ops[0]
		if got.Status != StatusSuccess || !got.FinishedAt.Valid {
			t.Errorf("finished operation = %+v", got)
		}
		if got.Parameters != "/src /dest" || got.Operation != "backup" || got.RunID != "run-1" {
			t.Errorf("operation fields = %+v", got)
		}
	})

	t.Run("finish unknown operation", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.FinishOperation(42, StatusError); err == nil {
			t.Error("FinishOperation() expected error for unknown id")
		}
	})

	t.Run("newest first with limit", func(t *testing.T) {
		db := newTestDB(t)
		for _, id := range []string{"a", "b", "c"} {
			if _, err := db.CreateOperation(id, "create", ""); err != nil {
				t.Fatal(err)
			}
		}
		ops, err := db.ListOperations(2)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 2 || ops[0].RunID != "c" || ops[1].RunID != "b" {
			t.Errorf("ListOperations(2) = %v", ops)
		}
	})

	t.Run("run ids are unique", func(t *testing.T) {
		db := newTestDB(t)
		if _, err := db.CreateOperation("dup", "create", ""); err != nil {
			t.Fatal(err)
		}
		if _, err := db.CreateOperation("dup", "create", ""); err == nil {
			t.Error("CreateOperation() expected error for duplicate run id")
		}
	})
}

func TestSQLiteDatabase_Snapshots(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CreateOperation("run-1", "backup", ""); err != nil {
		t.Fatal(err)
	}

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, name := range []string{"20240101-000000", "20240102-000000"} {
		rec := &chdiff.SnapshotRecord{
			ID:        name,
			RunID:     "run-1",
			Target:    "/dest/src",
			Name:      name,
			Method:    chdiff.MethodSHA256,
			New:       i + 1,
			Unchanged: 10,
			Deleted:   i,
			CreatedAt: created,
		}
		if err := db.RecordSnapshot(rec); err != nil {
			t.Fatalf("RecordSnapshot() error = %v", err)
		}
	}

	got, err := db.ListSnapshots("/dest/src", 10)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListSnapshots() returned %d records, want 2", len(got))
	}
	latest := got[0]
	if latest.Name != "20240102-000000" || latest.New != 2 || latest.Deleted != 1 || latest.Unchanged != 10 {
		t.Errorf("latest snapshot = %+v", latest)
	}
	if latest.Method != chdiff.MethodSHA256 {
		t.Errorf("Method = %q", latest.Method)
	}
	if !latest.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", latest.CreatedAt, created)
	}

	other, err := db.ListSnapshots("/dest/other", 10)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ListSnapshots(other) = %v, want none", other)
	}
}

func TestSQLiteDatabase_RecordSnapshotRequiresOperation(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordSnapshot(&chdiff.SnapshotRecord{
		ID: "x", RunID: "missing", Target: "/t", Name: "20240101-000000",
		Method: chdiff.MethodMD5, CreatedAt: time.Now(),
	})
	if err == nil {
		t.Error("RecordSnapshot() expected foreign key error")
	}
}

func TestSQLiteDatabase_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateOperation("run-1", "verify", "a b"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if err := reopened.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
	ops, err := reopened.ListOperations(5)
	if err != nil || len(ops) != 1 {
		t.Errorf("ListOperations() = %v, %v", ops, err)
	}
	if reopened.Path() != path {
		t.Errorf("Path() = %q, want %q", reopened.Path(), path)
	}
}
