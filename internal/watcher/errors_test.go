package watcher

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestWatchErrorMatchesKindAndCause(t *testing.T) {
	err := error(newWatchError(ErrIOFailure, "/w", fs.ErrPermission))
	if !errors.Is(err, ErrIOFailure) || !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected kind and cause to match, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other kinds not to match")
	}
	message := err.Error()
	if !strings.Contains(message, "io failure") || !strings.Contains(message, `"/w"`) || !strings.Contains(message, "permission denied") {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestWatchErrorWithoutCause(t *testing.T) {
	err := newWatchError(ErrInvalidArgument, "", nil)
	if err.Error() != "invalid argument" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(err.Unwrap()) != 1 {
		t.Fatalf("expected only the kind to unwrap")
	}
}
