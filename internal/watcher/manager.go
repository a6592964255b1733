package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fswatch/internal/event"
	"fswatch/internal/fsutil"
	"fswatch/internal/logging"
	"fswatch/internal/metrics"
)

const tracerName = "fswatch/internal/watcher"

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Notifier        Notifier
	Logger          *logging.Logger
	Metrics         *metrics.Registry
	Bus             event.Publisher[BatchEvent]
	TracerProvider  trace.TracerProvider
	DefaultThrottle time.Duration
	DefaultMaxBatch int
	Now             func() time.Time
}

// Manager binds native watches to registry entries and throttlers.
type Manager struct {
	mu       sync.RWMutex
	closed   bool
	registry *Registry
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.Registry
	bus      event.Publisher[BatchEvent]
	tracer   trace.Tracer
	throttle time.Duration
	maxBatch int
	now      func() time.Time
	forwards sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.ForCategory("watcher")
	registry := opts.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewFSNotifier(FSNotifierOptions{Logger: logger, Metrics: registry})
	}
	provider := opts.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	throttle := opts.DefaultThrottle
	if throttle <= 0 {
		throttle = DefaultThrottleInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		registry: NewRegistry(),
		notifier: notifier,
		logger:   logger,
		metrics:  registry,
		bus:      opts.Bus,
		tracer:   provider.Tracer(tracerName),
		throttle: throttle,
		maxBatch: opts.DefaultMaxBatch,
		now:      now,
	}
}

// StartWatch validates the target, opens a native watch and registers a new
// subscription. A file target watches its parent directory filtered to the
// file's name.
func (m *Manager) StartWatch(ctx context.Context, opts StartOptions) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := fsutil.Normalize(opts.Path)
	if path == "" {
		return "", newWatchError(ErrInvalidArgument, opts.Path, errors.New("path is required"))
	}
	if opts.ThrottleInterval < 0 {
		return "", newWatchError(ErrInvalidArgument, path, fmt.Errorf("negative throttle interval %s", opts.ThrottleInterval))
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newWatchError(ErrNotFound, path, err)
		}
		return "", newWatchError(ErrIOFailure, path, err)
	}

	watchedDir := path
	recursive := opts.Recursive
	var filter *Filter
	if info.IsDir() {
		filter, err = CompileFilter(opts.Filter)
		if err != nil {
			return "", newWatchError(ErrInvalidArgument, path, fmt.Errorf("filter %q: %w", opts.Filter, err))
		}
	} else {
		watchedDir = fsutil.Dir(path)
		if watchedDir == "" {
			watchedDir = "."
		}
		filter = exactFilter(fsutil.Base(path))
		recursive = false
	}

	interval := opts.ThrottleInterval
	if interval <= 0 {
		interval = m.throttle
	}
	maxBatch := opts.MaxBatch
	if maxBatch <= 0 {
		maxBatch = m.maxBatch
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", ErrManagerClosed
	}

	native, err := m.notifier.Subscribe(watchedDir, recursive, filter)
	if err != nil {
		return "", newWatchError(ErrIOFailure, watchedDir, err)
	}

	sub := &subscription{
		path:       path,
		watchedDir: watchedDir,
		filter:     filter,
		recursive:  recursive,
		interval:   interval,
		createdAt:  m.now().UTC(),
		callbacks:  opts.Callbacks,
		onBatch:    opts.OnBatch,
		native:     native,
	}
	sub.throttle = newThrottler(interval, maxBatch, m.now, func(batch []Event, active func() bool) {
		m.deliver(sub, batch, active)
	})
	id := m.registry.Create(sub)

	m.forwards.Add(1)
	go m.forward(sub)

	m.metrics.IncWatchStarted()
	m.logger.Info("watch started", map[string]string{
		"watch.id":    id,
		"path":        path,
		"watched_dir": watchedDir,
		"recursive":   strconv.FormatBool(recursive),
		"filter":      filter.Pattern(),
		"throttle":    interval.String(),
	})
	return id, nil
}

// StopWatch stops a subscription. Unknown or already stopped ids report
// false. Once it returns no new callback starts for id.
func (m *Manager) StopWatch(id string) bool {
	stopped, discarded, err := m.registry.Stop(id)
	if !stopped {
		m.logger.Debug("stop ignored", map[string]string{
			"watch.id": id,
			"reason":   ErrAlreadyInactive.Error(),
		})
		return false
	}
	m.metrics.IncWatchStopped()
	fields := map[string]string{
		"watch.id":  id,
		"discarded": strconv.Itoa(discarded),
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.Warn("native watch close failed", fields)
	} else {
		m.logger.Info("watch stopped", fields)
	}
	return true
}

// PauseWatch suspends event raising for id without releasing its handle.
// Events arriving while paused are dropped.
func (m *Manager) PauseWatch(id string) bool {
	return m.setEnabled(id, false)
}

func (m *Manager) ResumeWatch(id string) bool {
	return m.setEnabled(id, true)
}

func (m *Manager) setEnabled(id string, enabled bool) bool {
	sub, ok := m.registry.lookup(id)
	if !ok {
		return false
	}
	var changed bool
	if enabled {
		changed = m.registry.Resume(id)
	} else {
		changed = m.registry.Pause(id)
	}
	if !changed {
		return false
	}
	if sub.native != nil {
		sub.native.SetEnabled(enabled)
	}
	message := "watch paused"
	if enabled {
		message = "watch resumed"
	}
	m.logger.Debug(message, map[string]string{"watch.id": id})
	return true
}

func (m *Manager) ListWatches() []WatchInfo {
	return m.registry.List()
}

func (m *Manager) GetWatch(id string) (WatchInfo, bool) {
	return m.registry.Get(id)
}

// StopAllWatches stops every subscription. Close failures are logged and
// do not interrupt the sweep. It returns the number of stopped watches.
func (m *Manager) StopAllWatches() int {
	count, failures := m.registry.StopAll()
	for i := 0; i < count; i++ {
		m.metrics.IncWatchStopped()
	}
	for id, err := range failures {
		m.logger.Warn("native watch close failed", map[string]string{
			"watch.id": id,
			"error":    err.Error(),
		})
	}
	if count > 0 {
		m.logger.Info("all watches stopped", map[string]string{"count": strconv.Itoa(count)})
	}
	return count
}

// Close stops all watches and refuses further starts.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.StopAllWatches()
	m.forwards.Wait()
	return nil
}

// forward moves native events into the throttler until the handle closes.
func (m *Manager) forward(sub *subscription) {
	defer m.forwards.Done()
	for raw := range sub.native.Events() {
		m.metrics.IncRawEvent()
		switch sub.currentState() {
		case StatePaused:
			m.metrics.IncPausedDrop()
			continue
		case StateStopped:
			continue
		}
		if raw.Timestamp.IsZero() {
			raw.Timestamp = m.now().UTC()
		}
		sub.touch(raw.Timestamp)
		sub.throttle.add(raw)
	}
}

// deliver hands one batch to the subscription's bus and callbacks. The
// subscription must be active and not paused before each hand-off, so a
// stop or pause observed mid-batch ends delivery. A batch flushed after
// pause is dropped and counted like events dropped at the forwarder.
func (m *Manager) deliver(sub *subscription, batch []Event, active func() bool) {
	if len(batch) == 0 || !active() {
		return
	}
	if sub.currentState() == StatePaused {
		m.dropPaused(sub, len(batch))
		return
	}
	deliverable := func() bool {
		return active() && sub.currentState() == StateActive
	}

	_, span := m.tracer.Start(context.Background(), "watcher.deliver",
		trace.WithAttributes(
			attribute.String("watch.id", sub.id),
			attribute.Int("batch.size", len(batch)),
		),
	)
	defer span.End()
	interrupted := func() {
		span.SetAttributes(attribute.Bool("watch.interrupted", true))
	}

	sub.recordBatch(len(batch))
	m.metrics.RecordBatch(len(batch))
	if m.bus != nil {
		if !deliverable() {
			interrupted()
			return
		}
		m.bus.Publish(BatchEvent{
			WatchID:     sub.id,
			Path:        sub.path,
			Events:      append([]Event(nil), batch...),
			DeliveredAt: m.now().UTC(),
		})
	}

	panics := 0
	if sub.onBatch != nil {
		if !deliverable() {
			interrupted()
			return
		}
		if !m.invoke(sub, "batch", func() { sub.onBatch(sub.id, batch) }) {
			panics++
		}
	}
	for _, evt := range batch {
		callback := sub.callbacks.forKind(evt.Kind)
		if callback == nil {
			continue
		}
		if !deliverable() {
			interrupted()
			break
		}
		evt := evt
		if !m.invoke(sub, string(evt.Kind), func() { callback(evt) }) {
			panics++
		}
	}
	if panics > 0 {
		span.SetStatus(codes.Error, "callback panicked")
	}
}

func (m *Manager) dropPaused(sub *subscription, count int) {
	for i := 0; i < count; i++ {
		m.metrics.IncPausedDrop()
	}
	m.logger.Debug("batch dropped while paused", map[string]string{
		"watch.id":   sub.id,
		"batch.size": strconv.Itoa(count),
	})
}

// invoke runs fn and reports false when it panicked.
func (m *Manager) invoke(sub *subscription, callback string, fn func()) (ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			ok = false
			m.metrics.IncCallbackPanic()
			m.logger.Error("watch callback panicked", map[string]string{
				"watch.id": sub.id,
				"callback": callback,
				"panic":    fmt.Sprint(recovered),
			})
		}
	}()
	fn()
	return true
}
