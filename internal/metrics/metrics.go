package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry collects process counters and renders them in the Prometheus
// text exposition format. A nil *Registry ignores every call.
type Registry struct {
	watchesStarted   atomic.Int64
	watchesStopped   atomic.Int64
	activeWatches    atomic.Int64
	rawEvents        atomic.Int64
	pausedDrops      atomic.Int64
	overflowDrops    atomic.Int64
	batchesDelivered atomic.Int64
	eventsDelivered  atomic.Int64
	callbackPanics   atomic.Int64
	nativeErrors     atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	cacheEvictions   atomic.Int64
	buses            sync.Map
}

type busStats struct {
	published  atomic.Int64
	dropped    atomic.Int64
	filtered   atomic.Int64
	unfiltered atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncWatchStarted() {
	if r == nil {
		return
	}
	r.watchesStarted.Add(1)
	r.activeWatches.Add(1)
}

func (r *Registry) IncWatchStopped() {
	if r == nil {
		return
	}
	r.watchesStopped.Add(1)
	r.activeWatches.Add(-1)
}

func (r *Registry) IncRawEvent() {
	if r == nil {
		return
	}
	r.rawEvents.Add(1)
}

func (r *Registry) IncPausedDrop() {
	if r == nil {
		return
	}
	r.pausedDrops.Add(1)
}

func (r *Registry) IncOverflowDrop() {
	if r == nil {
		return
	}
	r.overflowDrops.Add(1)
}

func (r *Registry) RecordBatch(size int) {
	if r == nil {
		return
	}
	r.batchesDelivered.Add(1)
	r.eventsDelivered.Add(int64(size))
}

func (r *Registry) IncCallbackPanic() {
	if r == nil {
		return
	}
	r.callbackPanics.Add(1)
}

func (r *Registry) IncNativeError() {
	if r == nil {
		return
	}
	r.nativeErrors.Add(1)
}

func (r *Registry) IncCacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Add(1)
}

func (r *Registry) IncCacheMiss() {
	if r == nil {
		return
	}
	r.cacheMisses.Add(1)
}

func (r *Registry) IncCacheEviction() {
	if r == nil {
		return
	}
	r.cacheEvictions.Add(1)
}

func (r *Registry) IncEventPublished(bus, eventType string) {
	if r == nil {
		return
	}
	r.busStats(busKey(bus, eventType)).published.Add(1)
}

func (r *Registry) IncEventDropped(bus, eventType string) {
	if r == nil {
		return
	}
	r.busStats(busKey(bus, eventType)).dropped.Add(1)
}

func (r *Registry) SetEventSubscriberCounts(bus string, filtered, unfiltered int) {
	if r == nil {
		return
	}
	stats := r.busStats(busKey(bus, ""))
	stats.filtered.Store(int64(filtered))
	stats.unfiltered.Store(int64(unfiltered))
}

// Snapshot is a point-in-time copy of the watcher and cache counters.
type Snapshot struct {
	WatchesStarted   int64 `json:"watches_started"`
	WatchesStopped   int64 `json:"watches_stopped"`
	ActiveWatches    int64 `json:"active_watches"`
	RawEvents        int64 `json:"raw_events"`
	PausedDrops      int64 `json:"paused_drops"`
	OverflowDrops    int64 `json:"overflow_drops"`
	BatchesDelivered int64 `json:"batches_delivered"`
	EventsDelivered  int64 `json:"events_delivered"`
	CallbackPanics   int64 `json:"callback_panics"`
	NativeErrors     int64 `json:"native_errors"`
	CacheHits        int64 `json:"cache_hits"`
	CacheMisses      int64 `json:"cache_misses"`
	CacheEvictions   int64 `json:"cache_evictions"`
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		WatchesStarted:   r.watchesStarted.Load(),
		WatchesStopped:   r.watchesStopped.Load(),
		ActiveWatches:    r.activeWatches.Load(),
		RawEvents:        r.rawEvents.Load(),
		PausedDrops:      r.pausedDrops.Load(),
		OverflowDrops:    r.overflowDrops.Load(),
		BatchesDelivered: r.batchesDelivered.Load(),
		EventsDelivered:  r.eventsDelivered.Load(),
		CallbackPanics:   r.callbackPanics.Load(),
		NativeErrors:     r.nativeErrors.Load(),
		CacheHits:        r.cacheHits.Load(),
		CacheMisses:      r.cacheMisses.Load(),
		CacheEvictions:   r.cacheEvictions.Load(),
	}
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "fswatch_watches_started_total", "Total watches started", r.watchesStarted.Load())
	writeCounter(writer, "fswatch_watches_stopped_total", "Total watches stopped", r.watchesStopped.Load())
	writeGauge(writer, "fswatch_watches_active", "Watches currently registered", r.activeWatches.Load())
	writeCounter(writer, "fswatch_raw_events_total", "Native events received", r.rawEvents.Load())
	writeCounter(writer, "fswatch_paused_drops_total", "Events discarded while a watch was paused", r.pausedDrops.Load())
	writeCounter(writer, "fswatch_overflow_drops_total", "Native events lost to backend overflow", r.overflowDrops.Load())
	writeCounter(writer, "fswatch_batches_delivered_total", "Throttled batches delivered", r.batchesDelivered.Load())
	writeCounter(writer, "fswatch_events_delivered_total", "Events delivered inside batches", r.eventsDelivered.Load())
	writeCounter(writer, "fswatch_callback_panics_total", "Recovered callback panics", r.callbackPanics.Load())
	writeCounter(writer, "fswatch_native_errors_total", "Errors reported by the native notifier", r.nativeErrors.Load())
	writeCounter(writer, "fswatch_cache_hits_total", "Existence cache hits", r.cacheHits.Load())
	writeCounter(writer, "fswatch_cache_misses_total", "Existence cache misses", r.cacheMisses.Load())
	writeCounter(writer, "fswatch_cache_evictions_total", "Existence cache bulk evictions", r.cacheEvictions.Load())

	keys := r.busKeys()
	sort.Strings(keys)

	writeHelp(writer, "fswatch_bus_events_published_total", "Events published on an event bus")
	fmt.Fprintln(writer, "# TYPE fswatch_bus_events_published_total counter")
	writeHelp(writer, "fswatch_bus_events_dropped_total", "Events dropped by an event bus")
	fmt.Fprintln(writer, "# TYPE fswatch_bus_events_dropped_total counter")
	writeHelp(writer, "fswatch_bus_subscribers", "Event bus subscribers")
	fmt.Fprintln(writer, "# TYPE fswatch_bus_subscribers gauge")

	for _, key := range keys {
		stats := r.busStats(key)
		bus, eventType := splitBusKey(key)
		if eventType == "" {
			fmt.Fprintf(writer, "fswatch_bus_subscribers{bus=%s,filtered=\"true\"} %d\n", formatLabel(bus), stats.filtered.Load())
			fmt.Fprintf(writer, "fswatch_bus_subscribers{bus=%s,filtered=\"false\"} %d\n", formatLabel(bus), stats.unfiltered.Load())
			continue
		}
		labels := fmt.Sprintf("bus=%s,type=%s", formatLabel(bus), formatLabel(eventType))
		fmt.Fprintf(writer, "fswatch_bus_events_published_total{%s} %d\n", labels, stats.published.Load())
		fmt.Fprintf(writer, "fswatch_bus_events_dropped_total{%s} %d\n", labels, stats.dropped.Load())
	}

	return nil
}

func (r *Registry) busStats(key string) *busStats {
	value, _ := r.buses.LoadOrStore(key, &busStats{})
	return value.(*busStats)
}

func (r *Registry) busKeys() []string {
	var keys []string
	r.buses.Range(func(key, value interface{}) bool {
		if name, ok := key.(string); ok {
			keys = append(keys, name)
		}
		return true
	})
	return keys
}

func busKey(bus, eventType string) string {
	if strings.TrimSpace(bus) == "" {
		bus = "event_bus"
	}
	return bus + "\x00" + eventType
}

func splitBusKey(key string) (string, string) {
	bus, eventType, _ := strings.Cut(key, "\x00")
	return bus, eventType
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func writeGauge(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s gauge\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
