package hw

import (
	"sync"
	"time"
)

// Debouncer accepts at most one edge per window.
type Debouncer struct {
	mtx    sync.Mutex
	window time.Duration
	last   time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Accept reports whether an edge seen at now starts a new press.
func (d *Debouncer) Accept(now time.Time) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if !d.last.IsZero() && now.Sub(d.last) < d.window {
		return false
	}

	d.last = now
	return true
}
