package formstate

import (
	"sync"
	"time"
)

// debouncer runs fn on the leading edge of a burst and once more at the end
// of the window if further triggers arrived meanwhile.
type debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func()
	timer   *time.Timer
	pending bool
	stopped bool
}

func newDebouncer(wait time.Duration, fn func()) *debouncer {
	return &debouncer{wait: wait, fn: fn}
}

// Trigger requests a run.  It must not be called with locks held that fn
// acquires.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.wait <= 0 {
		d.mu.Unlock()
		d.fn()
		return
	}
	if d.timer != nil {
		d.pending = true
		d.mu.Unlock()
		return
	}
	d.timer = time.AfterFunc(d.wait, d.expire)
	d.mu.Unlock()
	d.fn()
}

func (d *debouncer) expire() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.timer = nil
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = time.AfterFunc(d.wait, d.expire)
	d.mu.Unlock()
	d.fn()
}

// Flush runs fn now if a trailing run is pending.
func (d *debouncer) Flush() {
	d.mu.Lock()
	pending := d.pending && !d.stopped
	d.pending = false
	d.mu.Unlock()
	if pending {
		d.fn()
	}
}

// Stop cancels the timer and drops any pending run.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
