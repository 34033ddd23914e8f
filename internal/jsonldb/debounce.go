package jsonldb

import (
	"sync"
	"time"
)

// Debouncer delays a call until no new call arrived for the configured duration.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
}

// NewDebouncer creates a new debouncer with the specified duration.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Debounce schedules fn after the debounce duration. A call arriving before
// the previous one fired replaces it.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel cancels any pending call. It reports whether a call was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}

// Immediate cancels any pending call and runs fn now.
func (d *Debouncer) Immediate(fn func()) {
	d.Cancel()
	fn()
}
