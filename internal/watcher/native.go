package watcher

// Notifier opens native watches. Implementations deliver events with
// normalized paths and apply the filter before sending.
type Notifier interface {
	Subscribe(dir string, recursive bool, filter *Filter) (NativeWatch, error)
}

// NativeWatch is one open native handle. Events is closed after Close.
type NativeWatch interface {
	Events() <-chan Event
	// SetEnabled toggles event raising without releasing the handle.
	SetEnabled(enabled bool)
	Close() error
}
