package chdiff

import "time"

// SnapshotRecord describes one completed snapshot.
type SnapshotRecord struct {
	ID        string
	RunID     string
	Target    string
	Name      string
	Previous  string
	Method    Method
	New       int
	Modified  int
	Unchanged int
	Deleted   int
	Failed    int
	CreatedAt time.Time
}

// History stores records of completed snapshots.
type History interface {
	// RecordSnapshot persists a snapshot record.
	RecordSnapshot(rec *SnapshotRecord) error

	// ListSnapshots returns the most recent records for a target, newest first.
	ListSnapshots(target string, limit int) ([]*SnapshotRecord, error)
}

// NopHistory drops all records.
type NopHistory struct{}

func (NopHistory) RecordSnapshot(*SnapshotRecord) error                   { return nil }
func (NopHistory) ListSnapshots(string, int) ([]*SnapshotRecord, error) { return nil, nil }
