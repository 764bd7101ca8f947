// Package watcher watches the cache directory and batches changes for revalidation.
package watcher

import (
	"slices"
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet period after the last event before a
// batch is released.
const DefaultDebounceWindow = 250 * time.Millisecond

// Debouncer coalesces rapid file system events into batches of unique paths.
// Batches are delivered on a channel with room for one; while the consumer is
// busy, new paths keep accumulating into the next batch.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	out     chan []string
	closed  bool
}

// NewDebouncer creates a debouncer that waits window after the last Add.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		out:     make(chan []string, 1),
	}
}

// Batches returns the channel of sorted path batches. It is closed by Close.
func (d *Debouncer) Batches() <-chan []string {
	return d.out
}

// Add records path and restarts the quiet period.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.pending[path] = struct{}{}
	d.arm()
}

// arm restarts the timer. Callers hold d.mu.
func (d *Debouncer) arm() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.timer = nil
	if d.closed || len(d.pending) == 0 {
		return
	}

	batch := d.snapshot()
	select {
	case d.out <- batch:
		clear(d.pending)
	default:
		// Consumer still holds the previous batch; keep accumulating.
		d.arm()
	}
}

// snapshot returns the pending paths sorted, leaving the set intact.
// Callers hold d.mu.
func (d *Debouncer) snapshot() []string {
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Flush returns the pending paths immediately instead of waiting for the timer.
func (d *Debouncer) Flush() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if len(d.pending) == 0 {
		return nil
	}
	paths := d.snapshot()
	clear(d.pending)
	return paths
}

// Close stops the timer and closes the batch channel. Pending paths are dropped.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	clear(d.pending)
	close(d.out)
}
