package digest

import (
	"io"
	"sync"
	"time"
)

// Throttler caps the average read rate across all readers it wraps.
// A rate of 0 disables throttling.
type Throttler struct {
	mu        sync.Mutex
	total     int64
	startTime time.Time
	rate      float64
	sleep     func(time.Duration)
	now       func() time.Time
}

// NewThrottler creates a throttler limited to rate bytes per second.
func NewThrottler(rate float64) *Throttler {
	return &Throttler{
		startTime: time.Now(),
		rate:      rate,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// Reader wraps r so that reads count against the rate.
func (t *Throttler) Reader(r io.Reader) io.Reader {
	return &throttledReader{t: t, r: r}
}

// tally records n bytes and returns how long the caller must wait.
func (t *Throttler) tally(n int64) time.Duration {
	if t.rate <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += n

	now := t.now()
	interval := now.Sub(t.startTime)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	if float64(t.total)/interval.Seconds() <= t.rate {
		return 0
	}
	shouldHaveTaken := time.Duration(float64(time.Second) * float64(t.total) / t.rate)
	return t.startTime.Add(shouldHaveTaken).Sub(now)
}

type throttledReader struct {
	t *Throttler
	r io.Reader
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	n, err := tr.r.Read(p)
	if n > 0 {
		if d := tr.t.tally(int64(n)); d > 0 {
			tr.t.sleep(d)
		}
	}
	return n, err
}
