package api

import (
	"net/http"
	"strings"
	"time"

	"fswatch/internal/watcher"
)

// maxThrottleMS keeps the millisecond-to-Duration conversion in range.
const maxThrottleMS = int64(24 * time.Hour / time.Millisecond)

func (h *RestHandler) handleWatches(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireService(); err != nil {
		return err
	}

	switch r.Method {
	case http.MethodGet:
		return h.listWatches(w)
	case http.MethodPost:
		return h.createWatch(w, r)
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, stopAllResponse{Stopped: h.Service.StopAllWatches()})
		return nil
	default:
		return methodNotAllowed(w, "GET, POST, DELETE")
	}
}

func (h *RestHandler) listWatches(w http.ResponseWriter) *apiError {
	infos := h.Service.ListWatches()
	response := make([]watchSummary, 0, len(infos))
	for _, info := range infos {
		response = append(response, summarizeWatch(info))
	}
	writeJSON(w, http.StatusOK, response)
	return nil
}

func (h *RestHandler) createWatch(w http.ResponseWriter, r *http.Request) *apiError {
	var request createWatchRequest
	if err := decodeJSONBody(r, &request); err != nil {
		return err
	}
	if strings.TrimSpace(request.Path) == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "path is required", Code: "invalid_argument"}
	}
	if request.ThrottleMS < 0 || request.MaxBatch < 0 {
		return &apiError{Status: http.StatusBadRequest, Message: "throttle_ms and max_batch must not be negative", Code: "invalid_argument"}
	}
	if request.ThrottleMS > maxThrottleMS {
		return &apiError{Status: http.StatusBadRequest, Message: "throttle_ms must not exceed 86400000", Code: "invalid_argument"}
	}

	id, err := h.Service.StartWatch(r.Context(), watcher.StartOptions{
		Path:             request.Path,
		Recursive:        request.Recursive,
		Filter:           request.Filter,
		ThrottleInterval: time.Duration(request.ThrottleMS) * time.Millisecond,
		MaxBatch:         request.MaxBatch,
	})
	if err != nil {
		return watchAPIError(err)
	}

	writeJSON(w, http.StatusCreated, createWatchResponse{ID: id})
	return nil
}

func (h *RestHandler) handleWatch(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireService(); err != nil {
		return err
	}

	id, action, err := parseWatchPath(r.URL.Path)
	if err != nil {
		return err
	}

	switch action {
	case watchPathPause:
		return h.toggleWatch(w, r, id, h.Service.PauseWatch)
	case watchPathResume:
		return h.toggleWatch(w, r, id, h.Service.ResumeWatch)
	}

	switch r.Method {
	case http.MethodGet:
		info, ok := h.Service.GetWatch(id)
		if !ok {
			return watchNotFound(id)
		}
		writeJSON(w, http.StatusOK, summarizeWatch(info))
		return nil
	case http.MethodDelete:
		if !h.Service.StopWatch(id) {
			return watchNotFound(id)
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	default:
		return methodNotAllowed(w, "GET, DELETE")
	}
}

func (h *RestHandler) toggleWatch(w http.ResponseWriter, r *http.Request, id string, apply func(string) bool) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	if !apply(id) {
		if _, ok := h.Service.GetWatch(id); ok {
			return &apiError{Status: http.StatusConflict, Message: "watch already in requested state", WatchID: id}
		}
		return watchNotFound(id)
	}
	info, ok := h.Service.GetWatch(id)
	if !ok {
		return watchNotFound(id)
	}
	writeJSON(w, http.StatusOK, summarizeWatch(info))
	return nil
}

func watchNotFound(id string) *apiError {
	return &apiError{Status: http.StatusNotFound, Message: "watch not found", WatchID: id}
}
