package source

import (
	"sync"
	"time"
)

// Coalescer merges bursts of change notifications into a single flush. Each
// Offer resets the delay window; once the window elapses with no further
// offers, the accumulated set of paths is handed to the flush function in a
// single call. Bulk operations (git checkout, editor save-all) therefore
// produce one downstream batch instead of one per file.
type Coalescer struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	pending map[string]struct{}
	flush   func(paths []string)
	stopped bool
}

// NewCoalescer creates a coalescer that calls flush after window of quiet.
func NewCoalescer(window time.Duration, flush func(paths []string)) *Coalescer {
	return &Coalescer{
		window:  window,
		pending: make(map[string]struct{}),
		flush:   flush,
	}
}

// Offer records a changed path and restarts the delay window.
func (c *Coalescer) Offer(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.pending[path] = struct{}{}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.fire)
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	if c.stopped || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(c.pending))
	for p := range c.pending {
		paths = append(paths, p)
	}
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	c.flush(paths)
}

// Stop cancels any pending flush. Paths offered after Stop are dropped.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = make(map[string]struct{})
}
