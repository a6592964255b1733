package watcher

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscription is one registered watch. Identity fields are fixed at
// creation; mutable state is guarded by mu.
type subscription struct {
	id         string
	seq        uint64
	path       string
	watchedDir string
	filter     *Filter
	recursive  bool
	interval   time.Duration
	createdAt  time.Time
	callbacks  Callbacks
	onBatch    func(string, []Event)

	throttle *throttler
	native   NativeWatch

	mu          sync.Mutex
	state       State
	lastEventAt time.Time
	batches     uint64
	events      uint64

	closeOnce sync.Once
	closeErr  error
}

func (s *subscription) info() WatchInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WatchInfo{
		ID:               s.id,
		Path:             s.path,
		WatchedDir:       s.watchedDir,
		Filter:           s.filter.Pattern(),
		Recursive:        s.recursive,
		State:            s.state,
		ThrottleInterval: s.interval,
		CreatedAt:        s.createdAt,
		LastEventAt:      s.lastEventAt,
		PendingEvents:    s.throttle.pendingCount(),
		BatchesDelivered: s.batches,
		EventsDelivered:  s.events,
	}
}

func (s *subscription) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState moves between non-terminal states and reports whether the
// subscription is still live.
func (s *subscription) setState(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return false
	}
	s.state = state
	return true
}

func (s *subscription) touch(at time.Time) {
	s.mu.Lock()
	s.lastEventAt = at
	s.mu.Unlock()
}

func (s *subscription) recordBatch(size int) {
	s.mu.Lock()
	s.batches++
	s.events += uint64(size)
	s.mu.Unlock()
}

// release marks the subscription stopped, discards pending events and closes
// the native handle. The handle is closed at most once.
func (s *subscription) release() (discarded int, err error) {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	if s.throttle != nil {
		discarded = s.throttle.stop()
	}
	s.closeOnce.Do(func() {
		if s.native != nil {
			s.closeErr = s.native.Close()
		}
	})
	return discarded, s.closeErr
}

// Registry owns the live subscriptions.
type Registry struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*subscription)}
}

// Create stores sub in the active state and returns its new id.
func (r *Registry) Create(sub *subscription) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	for r.subs[id] != nil {
		id = uuid.NewString()
	}
	r.nextSeq++
	sub.id = id
	sub.seq = r.nextSeq
	sub.state = StateActive
	r.subs[id] = sub
	return id
}

// Stop removes the subscription and releases it. Unknown ids report false.
// The error is the native close failure, if any; the subscription is
// removed regardless.
func (r *Registry) Stop(id string) (bool, int, error) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()
	if !ok {
		return false, 0, nil
	}
	discarded, err := sub.release()
	return true, discarded, err
}

// StopAll removes every subscription and releases each one. Failures are
// collected per id and never interrupt the sweep.
func (r *Registry) StopAll() (int, map[string]error) {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*subscription)
	r.mu.Unlock()

	var failures map[string]error
	for id, sub := range subs {
		if _, err := sub.release(); err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[id] = err
		}
	}
	return len(subs), failures
}

func (r *Registry) Pause(id string) bool {
	return r.transition(id, StatePaused)
}

func (r *Registry) Resume(id string) bool {
	return r.transition(id, StateActive)
}

func (r *Registry) transition(id string, state State) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return false
	}
	return sub.setState(state)
}

func (r *Registry) lookup(id string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	return sub, ok
}

func (r *Registry) Get(id string) (WatchInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return WatchInfo{}, false
	}
	return sub.info(), true
}

// List returns snapshots ordered by creation.
func (r *Registry) List() []WatchInfo {
	r.mu.RLock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].seq < subs[j].seq
	})
	infos := make([]WatchInfo, 0, len(subs))
	for _, sub := range subs {
		infos = append(infos, sub.info())
	}
	r.mu.RUnlock()
	return infos
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
