package chdiff

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval and waiting so snapshot naming is
// deterministic in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
