package app

import (
	"errors"

	"chdiff/internal/database"
)

// ErrDifferences signals that a command completed but found differences or
// per-file errors. The CLI maps it to exit status 1 without printing it.
var ErrDifferences = errors.New("differences found")

// Operation tracks the CLI run in the history database. Operations are
// created in memory with ID=0 and receive their ID once persisted.
type Operation struct {
	ID         int64
	RunID      string
	Operation  string
	Parameters string
	Status     string
}

// NewOperation creates a new in-memory operation.
func NewOperation(runID, operation, parameters string) *Operation {
	return &Operation{
		RunID:      runID,
		Operation:  operation,
		Parameters: parameters,
		Status:     database.StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Finish records the final status derived from the command result.
func (op *Operation) Finish(err error) {
	switch {
	case err == nil:
		op.Status = database.StatusSuccess
	case errors.Is(err, ErrDifferences):
		op.Status = database.StatusDifferences
	default:
		op.Status = database.StatusError
	}
}
