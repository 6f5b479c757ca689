package registration

import (
	"context"
	"sync"
	"time"
)

// Registry keeps one Workflow per session.  Desks whose session has ended
// without a logout (cookie expiry, Redis TTL) are collected by Sweep.
type Registry struct {
	mu      sync.Mutex
	m       map[string]*desk
	factory func(sessionID string) *Workflow
	now     func() time.Time
}

type desk struct {
	w    *Workflow
	used time.Time
}

func NewRegistry(factory func(sessionID string) *Workflow) *Registry {
	return &Registry{m: make(map[string]*desk), factory: factory, now: time.Now}
}

// Get returns the session's workflow, creating it on first use.
func (r *Registry) Get(sessionID string) *Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.m[sessionID]; ok {
		d.used = r.now()
		return d.w
	}
	d := &desk{w: r.factory(sessionID), used: r.now()}
	r.m[sessionID] = d
	return d.w
}

// Evict closes and forgets the session's workflow.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	d, ok := r.m[sessionID]
	delete(r.m, sessionID)
	r.mu.Unlock()
	if ok {
		d.w.Close()
	}
}

// Sweep evicts desks unused for longer than idle and desks whose session
// alive reports as gone.  A nil alive skips the session check; idle <= 0
// skips the age check.  It returns the number of desks evicted.
func (r *Registry) Sweep(idle time.Duration, alive func(sessionID string) bool) int {
	now := r.now()
	var stale, check []string
	r.mu.Lock()
	for id, d := range r.m {
		if idle > 0 && now.Sub(d.used) > idle {
			stale = append(stale, id)
		} else if alive != nil {
			check = append(check, id)
		}
	}
	r.mu.Unlock()

	// session lookups may hit Redis; run them without the lock
	for _, id := range check {
		if !alive(id) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.Evict(id)
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every, idle time.Duration, alive func(sessionID string) bool, onSweep func(evicted int)) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(idle, alive); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
