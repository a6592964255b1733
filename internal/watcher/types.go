package watcher

import (
	"time"
)

// EventKind tags a filesystem event.
type EventKind string

const (
	Changed EventKind = "changed"
	Created EventKind = "created"
	Deleted EventKind = "deleted"
	Renamed EventKind = "renamed"
)

// Event is a single normalized filesystem change. OldPath is set only for
// Renamed events.
type Event struct {
	Kind      EventKind `json:"kind"`
	Path      string    `json:"path"`
	OldPath   string    `json:"old_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Callbacks receive individual events of a delivered batch by kind. Nil
// callbacks are skipped.
type Callbacks struct {
	OnChange func(Event)
	OnCreate func(Event)
	OnDelete func(Event)
	OnRename func(Event)
}

func (c Callbacks) forKind(kind EventKind) func(Event) {
	switch kind {
	case Changed:
		return c.OnChange
	case Created:
		return c.OnCreate
	case Deleted:
		return c.OnDelete
	case Renamed:
		return c.OnRename
	default:
		return nil
	}
}

// StartOptions describes a watch request.
type StartOptions struct {
	Path      string
	Recursive bool
	// Filter is a glob matched against the base name and the path relative
	// to the watched directory. Empty or "*" matches everything.
	Filter           string
	ThrottleInterval time.Duration
	// MaxBatch flushes immediately once this many events are pending.
	// Zero means unlimited.
	MaxBatch  int
	Callbacks Callbacks
	OnBatch   func(id string, events []Event)
}

// State is the lifecycle state of a subscription.
type State string

const (
	StateActive  State = "active"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// WatchInfo is an immutable snapshot of a subscription.
type WatchInfo struct {
	ID               string        `json:"id"`
	Path             string        `json:"path"`
	WatchedDir       string        `json:"watched_dir"`
	Filter           string        `json:"filter,omitempty"`
	Recursive        bool          `json:"recursive"`
	State            State         `json:"state"`
	ThrottleInterval time.Duration `json:"throttle_interval"`
	CreatedAt        time.Time     `json:"created_at"`
	LastEventAt      time.Time     `json:"last_event_at,omitempty"`
	PendingEvents    int           `json:"pending_events"`
	BatchesDelivered uint64        `json:"batches_delivered"`
	EventsDelivered  uint64        `json:"events_delivered"`
}

const EventTypeBatch = "watch_batch"

// BatchEvent is published on the event bus for every delivered batch.
type BatchEvent struct {
	WatchID     string    `json:"watch_id"`
	Path        string    `json:"path"`
	Events      []Event   `json:"events"`
	DeliveredAt time.Time `json:"delivered_at"`
}

func (e BatchEvent) Type() string {
	return EventTypeBatch
}

func (e BatchEvent) Timestamp() time.Time {
	return e.DeliveredAt
}
