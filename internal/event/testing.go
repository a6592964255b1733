package event

import (
	"testing"
	"time"
)

// ReceiveWithTimeout waits for a single event or fails the test.
func ReceiveWithTimeout[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return event
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event after %s", timeout)
	}
	var zero T
	return zero
}

// ReceiveN collects exactly n events, failing if the whole set does not
// arrive within timeout.
func ReceiveN[T any](t *testing.T, ch <-chan T, n int, timeout time.Duration) []T {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	events := make([]T, 0, n)
	for len(events) < n {
		select {
		case event, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed after %d of %d events", len(events), n)
			}
			events = append(events, event)
		case <-deadline.C:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

// ExpectNone fails the test if an event arrives within wait. A closed
// channel counts as quiet.
func ExpectNone[T any](t *testing.T, ch <-chan T, wait time.Duration) {
	t.Helper()
	select {
	case event, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %#v", event)
		}
	case <-time.After(wait):
	}
}

// EventMatcher provides fluent assertions over event properties.
type EventMatcher[T any] struct {
	testing *testing.T
	event   T
}

func MatchEvent[T any](t *testing.T, event T) *EventMatcher[T] {
	if t != nil {
		t.Helper()
	}
	return &EventMatcher[T]{testing: t, event: event}
}

func (matcher *EventMatcher[T]) Require(message string, predicate func(T) bool) *EventMatcher[T] {
	if matcher == nil || matcher.testing == nil {
		return matcher
	}
	matcher.testing.Helper()
	if !predicate(matcher.event) {
		matcher.testing.Fatalf("%s", message)
	}
	return matcher
}

func (matcher *EventMatcher[T]) Event() T {
	if matcher == nil {
		var zero T
		return zero
	}
	return matcher.event
}
