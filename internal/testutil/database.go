package testutil

import (
	"testing"

	"chdiff/internal/database"
)

// TestRunID is the operation every NewTestHistory database starts with.
const TestRunID = "test-run"

// NewTestHistory creates a migrated in-memory history database holding one
// operation with run id TestRunID, so snapshot records can reference it.
// The database is automatically closed when the test completes.
func NewTestHistory(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.CreateOperation(TestRunID, "test", ""); err != nil {
		t.Fatalf("failed to create operation: %v", err)
	}
	return db
}
