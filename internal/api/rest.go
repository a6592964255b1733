package api

import (
	"net/http"
	"strings"

	"fswatch/internal/fswatch"
	"fswatch/internal/logging"
)

type RestHandler struct {
	Service *fswatch.Service
	Logger  *logging.Logger
}

func (h *RestHandler) requireService() *apiError {
	if h.Service == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "watch service unavailable"}
	}
	return nil
}

type watchPathAction int

const (
	watchPathWatch watchPathAction = iota
	watchPathPause
	watchPathResume
)

func parseWatchPath(path string) (string, watchPathAction, *apiError) {
	trimmed := strings.TrimPrefix(path, "/api/watches/")
	if trimmed == path {
		return "", watchPathWatch, &apiError{Status: http.StatusNotFound, Message: "watch not found"}
	}

	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return "", watchPathWatch, &apiError{Status: http.StatusBadRequest, Message: "missing watch id"}
	}

	parts := strings.Split(trimmed, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		return id, watchPathWatch, nil
	case len(parts) == 2 && parts[1] == "pause":
		return id, watchPathPause, nil
	case len(parts) == 2 && parts[1] == "resume":
		return id, watchPathResume, nil
	default:
		return "", watchPathWatch, &apiError{Status: http.StatusNotFound, Message: "unknown watch action"}
	}
}
