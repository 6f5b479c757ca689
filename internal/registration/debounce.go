package registration

import (
	"sync"
	"time"
)

type stopper interface{ Stop() bool }

// afterFunc schedules f after d.  Tests swap in a manual clock.
type afterFunc func(d time.Duration, f func()) stopper

func realAfter(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) }

// debouncer holds a single timer handle.  Each Trigger replaces the pending
// call; only the last one within the quiet period runs.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	after afterFunc
	timer stopper
}

func newDebouncer(delay time.Duration, after afterFunc) *debouncer {
	if after == nil {
		after = realAfter
	}
	return &debouncer{delay: delay, after: after}
}

func (d *debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.after(d.delay, f)
}

func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
