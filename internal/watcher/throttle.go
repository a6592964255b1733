package watcher

import (
	"sync"
	"time"
)

const DefaultThrottleInterval = 300 * time.Millisecond

// throttler coalesces events of one subscription into batches. A batch is
// delivered once no event has arrived for a full interval, or immediately
// when maxBatch events are pending.
//
// Lock order is deliverMu then mu. add and stop take only mu, so they never
// wait behind a running delivery.
type throttler struct {
	mu        sync.Mutex
	interval  time.Duration
	maxBatch  int
	pending   []Event
	lastEvent time.Time
	timer     *time.Timer
	scheduled bool
	active    bool

	deliverMu sync.Mutex
	deliver   func(batch []Event, active func() bool)
	now       func() time.Time
}

func newThrottler(interval time.Duration, maxBatch int, now func() time.Time, deliver func([]Event, func() bool)) *throttler {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	if maxBatch < 0 {
		maxBatch = 0
	}
	if now == nil {
		now = time.Now
	}
	return &throttler{
		interval: interval,
		maxBatch: maxBatch,
		active:   true,
		deliver:  deliver,
		now:      now,
	}
}

func (t *throttler) add(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.pending = append(t.pending, event)
	t.lastEvent = t.now()

	full := t.maxBatch > 0 && len(t.pending) >= t.maxBatch
	switch {
	case !t.scheduled && full:
		t.scheduled = true
		t.timer = time.AfterFunc(0, t.flush)
	case !t.scheduled:
		t.scheduled = true
		t.timer = time.AfterFunc(t.interval, t.flush)
	case full:
		t.timer.Reset(0)
	}
}

func (t *throttler) flush() {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	if !t.active || len(t.pending) == 0 {
		t.scheduled = false
		t.mu.Unlock()
		return
	}
	full := t.maxBatch > 0 && len(t.pending) >= t.maxBatch
	if !full {
		if wait := t.interval - t.now().Sub(t.lastEvent); wait > 0 {
			t.timer.Reset(wait)
			t.mu.Unlock()
			return
		}
	}
	batch := t.pending
	t.pending = nil
	t.scheduled = false
	t.mu.Unlock()

	if t.deliver != nil {
		t.deliver(batch, t.isActive)
	}
}

func (t *throttler) isActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *throttler) pendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// stop discards pending events and cancels any scheduled flush. It returns
// the number of discarded events.
func (t *throttler) stop() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return 0
	}
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
	}
	discarded := len(t.pending)
	t.pending = nil
	t.scheduled = false
	return discarded
}
