package api

import (
	"time"

	"fswatch/internal/existcache"
	"fswatch/internal/metrics"
	"fswatch/internal/watcher"
)

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	WatchID string `json:"watch_id,omitempty"`
}

type createWatchRequest struct {
	Path       string `json:"path"`
	Recursive  bool   `json:"recursive"`
	Filter     string `json:"filter"`
	ThrottleMS int64  `json:"throttle_ms"`
	MaxBatch   int    `json:"max_batch"`
}

type createWatchResponse struct {
	ID string `json:"id"`
}

type watchSummary struct {
	ID               string        `json:"id"`
	Path             string        `json:"path"`
	WatchedDir       string        `json:"watched_dir"`
	Filter           string        `json:"filter,omitempty"`
	Recursive        bool          `json:"recursive"`
	State            watcher.State `json:"state"`
	ThrottleMS       int64         `json:"throttle_ms"`
	CreatedAt        time.Time     `json:"created_at"`
	LastEventAt      *time.Time    `json:"last_event_at,omitempty"`
	PendingEvents    int           `json:"pending_events"`
	BatchesDelivered uint64        `json:"batches_delivered"`
	EventsDelivered  uint64        `json:"events_delivered"`
}

type stopAllResponse struct {
	Stopped int `json:"stopped"`
}

type existsResponse struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Exists bool   `json:"exists"`
}

type cacheResultRequest struct {
	Path   string `json:"path"`
	Exists *bool  `json:"exists"`
}

type statusResponse struct {
	Version    string                `json:"version"`
	Major      int                   `json:"major"`
	Minor      int                   `json:"minor"`
	Patch      int                   `json:"patch"`
	Built      string                `json:"built"`
	GitCommit  string                `json:"git_commit,omitempty"`
	ServerTime time.Time             `json:"server_time"`
	WatchCount int                   `json:"watch_count"`
	Cache      existcache.CacheStats `json:"cache"`
	Metrics    metrics.Snapshot      `json:"metrics"`
}

func summarizeWatch(info watcher.WatchInfo) watchSummary {
	summary := watchSummary{
		ID:               info.ID,
		Path:             info.Path,
		WatchedDir:       info.WatchedDir,
		Filter:           info.Filter,
		Recursive:        info.Recursive,
		State:            info.State,
		ThrottleMS:       info.ThrottleInterval.Milliseconds(),
		CreatedAt:        info.CreatedAt,
		PendingEvents:    info.PendingEvents,
		BatchesDelivered: info.BatchesDelivered,
		EventsDelivered:  info.EventsDelivered,
	}
	if !info.LastEventAt.IsZero() {
		last := info.LastEventAt
		summary.LastEventAt = &last
	}
	return summary
}
