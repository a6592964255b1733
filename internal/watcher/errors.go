package watcher

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrIOFailure       = errors.New("io failure")
	ErrAlreadyInactive = errors.New("already inactive")
	ErrManagerClosed   = errors.New("watch manager closed")
)

// WatchError reports a failed watch operation. Kind is one of the sentinel
// errors above and Err, when set, is the underlying cause; errors.Is matches
// both.
type WatchError struct {
	Kind error
	Path string
	Err  error
}

func newWatchError(kind error, path string, err error) *WatchError {
	return &WatchError{Kind: kind, Path: path, Err: err}
}

func (e *WatchError) Error() string {
	if e == nil {
		return ""
	}
	message := e.Kind.Error()
	if e.Path != "" {
		message = fmt.Sprintf("%s: %q", message, e.Path)
	}
	if e.Err != nil {
		message = fmt.Sprintf("%s: %v", message, e.Err)
	}
	return message
}

func (e *WatchError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
