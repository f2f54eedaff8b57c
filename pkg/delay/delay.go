// Package delay schedules named functions to run after a delay.  Scheduling a
// name again replaces the pending function, and a pending function can be
// cancelled.
package delay

import (
	"context"
	"sync"
	"time"
)

type Func func()

type item struct {
	cancel func()
	at     time.Time
	seq    uint64
}

type Delay struct {
	mtx sync.Mutex
	m   map[string]item
	seq uint64
}

func New() *Delay {
	return &Delay{
		m: make(map[string]item),
	}
}

// After runs f once d has elapsed unless the name is rescheduled, cancelled,
// or ctx ends first.
func (d *Delay) After(ctx context.Context, name string, dur time.Duration, f Func) {
	d.Set(ctx, name, time.Now().Add(dur), f)
}

// Set runs f at t.  Setting the same name with an equal time is a no-op.
func (d *Delay) Set(ctx context.Context, name string, t time.Time, f Func) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if ii, ok := d.m[name]; ok {
		if ii.at.Equal(t) {
			return
		}

		ii.cancel()
	}

	d.seq++
	c, cancel := context.WithCancel(ctx)
	i := item{
		cancel: cancel,
		at:     t,
		seq:    d.seq,
	}

	d.m[name] = i
	go d.wait(c, name, i, f)
}

// Cancel drops the pending function for name.  It reports whether one was
// pending.
func (d *Delay) Cancel(name string) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	i, ok := d.m[name]
	if !ok {
		return false
	}

	i.cancel()
	delete(d.m, name)
	return true
}

func (d *Delay) Pending(name string) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	_, ok := d.m[name]
	return ok
}

func (d *Delay) wait(ctx context.Context, name string, i item, f Func) {
	t := time.NewTimer(time.Until(i.at))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	// A replacement may have been scheduled while the timer fired.
	d.mtx.Lock()
	cur, ok := d.m[name]
	if !ok || cur.seq != i.seq {
		d.mtx.Unlock()
		return
	}
	delete(d.m, name)
	d.mtx.Unlock()

	i.cancel()
	f()
}
