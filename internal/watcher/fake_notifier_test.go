package watcher

import (
	"sync"
	"sync/atomic"
)

type fakeNotifier struct {
	mu      sync.Mutex
	watches []*fakeWatch
	err     error
}

func (n *fakeNotifier) Subscribe(dir string, recursive bool, filter *Filter) (NativeWatch, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	watch := &fakeWatch{
		dir:       dir,
		recursive: recursive,
		filter:    filter,
		events:    make(chan Event, 256),
	}
	watch.enabled.Store(true)
	n.watches = append(n.watches, watch)
	return watch, nil
}

func (n *fakeNotifier) last() *fakeWatch {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.watches) == 0 {
		return nil
	}
	return n.watches[len(n.watches)-1]
}

type fakeWatch struct {
	dir       string
	recursive bool
	filter    *Filter
	events    chan Event
	enabled   atomic.Bool
	closes    atomic.Int32
	closeErr  error

	mu     sync.Mutex
	closed bool
}

// emit mimics a native handle: disabled or closed handles raise nothing.
func (w *fakeWatch) emit(evt Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.enabled.Load() || !w.filter.MatchEvent(w.dir, evt) {
		return
	}
	w.events <- evt
}

// inject bypasses the enabled flag to model a native event already in flight.
func (w *fakeWatch) inject(evt Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.events <- evt
}

func (w *fakeWatch) Events() <-chan Event {
	return w.events
}

func (w *fakeWatch) SetEnabled(enabled bool) {
	w.enabled.Store(enabled)
}

func (w *fakeWatch) Close() error {
	w.closes.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
	return w.closeErr
}
