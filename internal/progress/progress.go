package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"chdiff/internal/chdiff"
)

// DefaultInterval is the redraw period of a Tracker.
const DefaultInterval = 100 * time.Millisecond

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Tracker draws a spinner and a running file count on one terminal line.
// A Tracker is used for a single scan: Start, any number of Increment calls,
// then Finish.
type Tracker struct {
	w        io.Writer
	interval time.Duration

	mu        sync.Mutex
	message   string
	current   int
	startTime time.Time
	done      chan struct{}
	stopped   chan struct{}
}

// NewTracker creates a Tracker drawing to w.
func NewTracker(w io.Writer) *Tracker {
	return &Tracker{w: w, interval: DefaultInterval}
}

// Start begins rendering.
func (p *Tracker) Start(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	p.message = message
	p.startTime = time.Now()
	p.done = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.render()
}

func (p *Tracker) render() {
	defer close(p.stopped)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-p.done:
			p.mu.Lock()
			fmt.Fprintf(p.w, "\r✓ %s (%d files, %s)          \n",
				p.message, p.current, time.Since(p.startTime).Round(time.Millisecond))
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.mu.Lock()
			fmt.Fprintf(p.w, "\r%s %s [%d files]  ", spinner[frame%len(spinner)], p.message, p.current)
			p.mu.Unlock()
			frame++
		}
	}
}

// Increment counts one digested file.
func (p *Tracker) Increment() {
	p.mu.Lock()
	p.current++
	p.mu.Unlock()
}

// Finish stops rendering and prints the final line. It returns after the
// line is written.
func (p *Tracker) Finish() {
	p.mu.Lock()
	done, stopped := p.done, p.stopped
	p.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
		return
	default:
		close(done)
	}
	<-stopped
}

// Enabled reports whether progress should be drawn on f: it must be a
// terminal, quiet mode must be off and directories must be processed one at
// a time so lines do not interleave.
func Enabled(f *os.File, quiet, parallelDirs int) bool {
	return quiet == 0 && parallelDirs <= 1 && term.IsTerminal(int(f.Fd()))
}

// Factory returns a constructor for per-scan trackers on w, or nil when
// progress is disabled.
func Factory(w io.Writer, enabled bool) func() chdiff.Progress {
	if !enabled {
		return nil
	}
	return func() chdiff.Progress { return NewTracker(w) }
}

var _ chdiff.Progress = (*Tracker)(nil)
