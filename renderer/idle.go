package renderer

import (
	"context"
	"sync"
	"time"
)

// idleTracker implements the network-idle heuristic: the page counts as
// settled once at most maxInflight requests have been pending for a full
// quiet window. Request IDs are opaque strings so both CDP clients can feed it.
type idleTracker struct {
	quiet       time.Duration
	maxInflight int

	mu         sync.Mutex
	inflight   map[string]struct{}
	lastChange time.Time
}

func newIdleTracker(quiet time.Duration, maxInflight int) *idleTracker {
	return &idleTracker{
		quiet:       quiet,
		maxInflight: maxInflight,
		inflight:    make(map[string]struct{}),
		lastChange:  time.Now(),
	}
}

func (t *idleTracker) started(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; ok {
		// Redirects reuse the request ID.
		return
	}
	t.inflight[id] = struct{}{}
	t.touchLocked()
}

func (t *idleTracker) finished(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	t.touchLocked()
}

// touchLocked restarts the quiet window; any change in the in-flight set
// counts as network activity.
func (t *idleTracker) touchLocked() {
	t.lastChange = time.Now()
}

// reset restarts the quiet window, e.g. when navigation begins.
func (t *idleTracker) reset() {
	t.mu.Lock()
	t.lastChange = time.Now()
	t.mu.Unlock()
}

func (t *idleTracker) idle(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) <= t.maxInflight && now.Sub(t.lastChange) >= t.quiet
}

// wait blocks until the tracker reports idle or ctx is done.
func (t *idleTracker) wait(ctx context.Context) error {
	interval := t.quiet / 10
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if t.idle(now) {
				return nil
			}
		}
	}
}
