package watcher

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"fswatch/internal/fsutil"
	"fswatch/internal/logging"
	"fswatch/internal/metrics"
)

const (
	defaultRenamePairWindow = 100 * time.Millisecond
	defaultEventBuffer      = 1024
	defaultErrorLogInterval = time.Second
	defaultErrorLogBurst    = 5
)

type FSNotifierOptions struct {
	Logger  *logging.Logger
	Metrics *metrics.Registry
	// RenamePairWindow is how long a Rename waits for the Create carrying
	// the new name before it is reported as Deleted.
	RenamePairWindow time.Duration
	EventBuffer      int
	// ErrorLogInterval and ErrorLogBurst bound how often native errors are
	// logged. Every error is still counted.
	ErrorLogInterval time.Duration
	ErrorLogBurst    int
}

// FSNotifier is the fsnotify-backed Notifier. Each subscription gets its own
// fsnotify.Watcher.
type FSNotifier struct {
	options FSNotifierOptions
}

func NewFSNotifier(options FSNotifierOptions) *FSNotifier {
	if options.Logger == nil {
		options.Logger = logging.Discard()
	}
	options.Logger = options.Logger.ForCategory("watcher")
	if options.Metrics == nil {
		options.Metrics = metrics.Default
	}
	if options.RenamePairWindow <= 0 {
		options.RenamePairWindow = defaultRenamePairWindow
	}
	if options.EventBuffer <= 0 {
		options.EventBuffer = defaultEventBuffer
	}
	if options.ErrorLogInterval <= 0 {
		options.ErrorLogInterval = defaultErrorLogInterval
	}
	if options.ErrorLogBurst <= 0 {
		options.ErrorLogBurst = defaultErrorLogBurst
	}
	return &FSNotifier{options: options}
}

func (n *FSNotifier) Subscribe(dir string, recursive bool, filter *Filter) (NativeWatch, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	root := fsutil.Normalize(dir)
	handle := &fsWatch{
		watcher:    source,
		root:       root,
		recursive:  recursive,
		filter:     filter,
		pairWindow: n.options.RenamePairWindow,
		out:        make(chan Event, n.options.EventBuffer),
		done:       make(chan struct{}),
		logger:     n.options.Logger,
		metrics:    n.options.Metrics,
		limiter:    rate.NewLimiter(rate.Every(n.options.ErrorLogInterval), n.options.ErrorLogBurst),
	}
	handle.enabled.Store(true)

	if recursive {
		err = handle.addRecursiveWatches(dir)
	} else {
		err = source.Add(dir)
	}
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	go handle.run()
	return handle, nil
}

type pendingRename struct {
	path string
	at   time.Time
}

type fsWatch struct {
	watcher    *fsnotify.Watcher
	root       string
	recursive  bool
	filter     *Filter
	pairWindow time.Duration
	out        chan Event
	done       chan struct{}
	enabled    atomic.Bool
	closeOnce  sync.Once
	closeErr   error
	logger     *logging.Logger
	metrics    *metrics.Registry
	limiter    *rate.Limiter

	// Owned by run.
	rename      *pendingRename
	renameTimer *time.Timer
}

func (w *fsWatch) Events() <-chan Event {
	return w.out
}

func (w *fsWatch) SetEnabled(enabled bool) {
	w.enabled.Store(enabled)
}

func (w *fsWatch) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}

func (w *fsWatch) run() {
	defer close(w.out)
	defer w.stopRenameTimer()

	for {
		var renameExpired <-chan time.Time
		if w.renameTimer != nil {
			renameExpired = w.renameTimer.C
		}
		select {
		case raw, ok := <-w.watcher.Events:
			if !ok {
				w.flushRename()
				return
			}
			w.handle(raw)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.flushRename()
				return
			}
			w.handleError(err)
		case <-renameExpired:
			w.renameTimer = nil
			w.flushRename()
		case <-w.done:
			return
		}
	}
}

func (w *fsWatch) handle(raw fsnotify.Event) {
	path := fsutil.Normalize(raw.Name)
	now := time.Now().UTC()

	switch {
	case raw.Has(fsnotify.Create):
		if w.recursive {
			w.watchNewDir(raw.Name)
		}
		if w.rename != nil && fsutil.Dir(w.rename.path) == fsutil.Dir(path) && now.Sub(w.rename.at) <= w.pairWindow {
			oldPath := w.rename.path
			w.rename = nil
			w.stopRenameTimer()
			w.emit(Event{Kind: Renamed, Path: path, OldPath: oldPath, Timestamp: now})
			return
		}
		w.flushRename()
		w.emit(Event{Kind: Created, Path: path, Timestamp: now})
	case raw.Has(fsnotify.Rename):
		w.flushRename()
		w.rename = &pendingRename{path: path, at: now}
		w.renameTimer = time.NewTimer(w.pairWindow)
	case raw.Has(fsnotify.Remove):
		w.flushRename()
		w.emit(Event{Kind: Deleted, Path: path, Timestamp: now})
	case raw.Has(fsnotify.Write), raw.Has(fsnotify.Chmod):
		w.flushRename()
		w.emit(Event{Kind: Changed, Path: path, Timestamp: now})
	}
}

// flushRename reports an unpaired rename as a deletion of the old name.
func (w *fsWatch) flushRename() {
	if w.rename == nil {
		return
	}
	pending := w.rename
	w.rename = nil
	w.stopRenameTimer()
	w.emit(Event{Kind: Deleted, Path: pending.path, Timestamp: pending.at})
}

func (w *fsWatch) stopRenameTimer() {
	if w.renameTimer == nil {
		return
	}
	w.renameTimer.Stop()
	w.renameTimer = nil
}

func (w *fsWatch) watchNewDir(name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addRecursiveWatches(name); err != nil {
		w.logger.Warn("recursive watch add failed", map[string]string{
			"path":  name,
			"error": err.Error(),
		})
	}
}

func (w *fsWatch) emit(evt Event) {
	if !w.enabled.Load() || !w.filter.MatchEvent(w.root, evt) {
		return
	}
	select {
	case w.out <- evt:
	case <-w.done:
	default:
		w.metrics.IncOverflowDrop()
		if w.limiter.Allow() {
			w.logger.Warn("native event buffer full", map[string]string{
				"path": evt.Path,
			})
		}
	}
}

func (w *fsWatch) handleError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.metrics.IncOverflowDrop()
	}
	w.metrics.IncNativeError()
	if !w.limiter.Allow() {
		return
	}
	w.logger.Warn("native watcher error", map[string]string{
		"root":  w.root,
		"error": err.Error(),
	})
}
