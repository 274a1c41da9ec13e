package database

import (
	"database/sql"
	"time"
)

// Operation is one recorded CLI run.
type Operation struct {
	ID         int64
	RunID      string
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
}

// Snapshot is one completed backup snapshot.
type Snapshot struct {
	ID        string
	RunID     string
	Target    string
	Name      string
	Previous  string
	Method    string
	NewFiles  int64
	Modified  int64
	Unchanged int64
	Deleted   int64
	Failed    int64
	CreatedAt time.Time
}
