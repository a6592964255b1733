// Package fswatch combines the watch manager and the existence cache into
// the service used by the daemon and the HTTP API.
package fswatch

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"fswatch/internal/event"
	"fswatch/internal/existcache"
	"fswatch/internal/logging"
	"fswatch/internal/metrics"
	"fswatch/internal/watcher"
)

const defaultBatchHistory = 64

type Options struct {
	Logger         *logging.Logger
	Metrics        *metrics.Registry
	Notifier       watcher.Notifier
	TracerProvider trace.TracerProvider
	// Bus receives every delivered batch. When nil the service creates and
	// owns one.
	Bus *event.Bus[watcher.BatchEvent]

	ThrottleInterval time.Duration
	MaxBatch         int
	CacheTTL         time.Duration
	CacheMaxEntries  int
	// KeepCacheOnEvents disables dropping cache entries for paths named in
	// delivered batches.
	KeepCacheOnEvents bool
}

// Service is the public surface: watch lifecycle plus cached existence
// checks. All methods are safe for concurrent use.
type Service struct {
	manager           *watcher.Manager
	cache             *existcache.Cache
	bus               *event.Bus[watcher.BatchEvent]
	ownsBus           bool
	logger            *logging.Logger
	metrics           *metrics.Registry
	invalidateOnEvent bool
	closeOnce         sync.Once
}

func New(ctx context.Context, opts Options) *Service {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	registry := opts.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	bus := opts.Bus
	ownsBus := false
	if bus == nil {
		bus = event.NewBus[watcher.BatchEvent](ctx, event.BusOptions{
			Name:        "watch_batches",
			HistorySize: defaultBatchHistory,
			Registry:    registry,
			Logger:      logger,
		})
		ownsBus = true
	}

	manager := watcher.NewManager(watcher.Options{
		Notifier:        opts.Notifier,
		Logger:          logger,
		Metrics:         registry,
		Bus:             bus,
		TracerProvider:  opts.TracerProvider,
		DefaultThrottle: opts.ThrottleInterval,
		DefaultMaxBatch: opts.MaxBatch,
	})
	cache := existcache.New(existcache.Options{
		TTL:        opts.CacheTTL,
		MaxEntries: opts.CacheMaxEntries,
		Registry:   registry,
		Sink:       logger.ForCategory("cache"),
	})

	return &Service{
		manager:           manager,
		cache:             cache,
		bus:               bus,
		ownsBus:           ownsBus,
		logger:            logger,
		metrics:           registry,
		invalidateOnEvent: !opts.KeepCacheOnEvents,
	}
}

// StartWatch starts a subscription. Paths named in its batches are dropped
// from the existence cache before the callbacks run.
func (s *Service) StartWatch(ctx context.Context, opts watcher.StartOptions) (string, error) {
	if s.invalidateOnEvent {
		onBatch := opts.OnBatch
		opts.OnBatch = func(id string, events []watcher.Event) {
			s.invalidateEvents(events)
			if onBatch != nil {
				onBatch(id, events)
			}
		}
	}
	return s.manager.StartWatch(ctx, opts)
}

func (s *Service) StopWatch(id string) bool {
	return s.manager.StopWatch(id)
}

func (s *Service) PauseWatch(id string) bool {
	return s.manager.PauseWatch(id)
}

func (s *Service) ResumeWatch(id string) bool {
	return s.manager.ResumeWatch(id)
}

func (s *Service) ListWatches() []watcher.WatchInfo {
	return s.manager.ListWatches()
}

func (s *Service) GetWatch(id string) (watcher.WatchInfo, bool) {
	return s.manager.GetWatch(id)
}

func (s *Service) StopAllWatches() int {
	return s.manager.StopAllWatches()
}

// FileExistsCached reports whether path is an existing regular file,
// consulting the filesystem at most once per cache TTL.
func (s *Service) FileExistsCached(path string) bool {
	return s.cache.FileExists(path)
}

func (s *Service) DirectoryExistsCached(path string) bool {
	return s.cache.DirectoryExists(path)
}

// ExistsCached checks path with a caller supplied probe.
func (s *Service) ExistsCached(path string, probe existcache.Probe) bool {
	return s.cache.Check(path, probe)
}

func (s *Service) InvalidateCache(path string) {
	s.cache.Invalidate(path)
}

// CacheResult records a known outcome, for example after the caller created
// or deleted path itself.
func (s *Service) CacheResult(path string, exists bool) {
	s.cache.CacheResult(path, exists)
}

func (s *Service) CacheStats() existcache.CacheStats {
	return s.cache.Stats()
}

func (s *Service) Bus() *event.Bus[watcher.BatchEvent] {
	return s.bus
}

func (s *Service) Metrics() *metrics.Registry {
	return s.metrics
}

func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// Close stops every watch and refuses new ones. It is safe to call more
// than once.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.manager.Close()
		if s.ownsBus {
			s.bus.Close()
		}
		s.cache.Clear()
	})
	return err
}

func (s *Service) invalidateEvents(events []watcher.Event) {
	for _, evt := range events {
		s.cache.Invalidate(evt.Path)
		if evt.OldPath != "" {
			s.cache.Invalidate(evt.OldPath)
		}
	}
}
