package api

import (
	"net/http"
	"time"

	"fswatch/internal/logging"
	"fswatch/internal/version"
)

func (h *RestHandler) handleStatus(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if err := h.requireService(); err != nil {
		return err
	}

	versionInfo := version.GetVersionInfo()
	writeJSON(w, http.StatusOK, statusResponse{
		Version:    versionInfo.Version,
		Major:      versionInfo.Major,
		Minor:      versionInfo.Minor,
		Patch:      versionInfo.Patch,
		Built:      versionInfo.Built,
		GitCommit:  versionInfo.GitCommit,
		ServerTime: time.Now().UTC(),
		WatchCount: len(h.Service.ListWatches()),
		Cache:      h.Service.CacheStats(),
		Metrics:    h.Service.Metrics().Snapshot(),
	})
	return nil
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Service == nil {
		http.Error(w, "watch service unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := h.Service.Metrics().WritePrometheus(w); err != nil && h.Logger != nil {
		h.Logger.Warn("metrics write failed", map[string]string{
			logging.CategoryKey: "api",
			"error":             err.Error(),
		})
	}
}
