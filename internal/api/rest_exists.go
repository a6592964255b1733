package api

import (
	"net/http"
	"strings"

	"fswatch/internal/fsutil"
)

const (
	existsKindAny  = "any"
	existsKindFile = "file"
	existsKindDir  = "dir"
)

// handleExists serves cached existence checks. GET probes, POST records a
// known result and DELETE invalidates.
func (h *RestHandler) handleExists(w http.ResponseWriter, r *http.Request) *apiError {
	if err := h.requireService(); err != nil {
		return err
	}

	switch r.Method {
	case http.MethodGet:
		return h.checkExists(w, r)
	case http.MethodPost:
		return h.recordExists(w, r)
	case http.MethodDelete:
		path := strings.TrimSpace(r.URL.Query().Get("path"))
		if path == "" {
			return &apiError{Status: http.StatusBadRequest, Message: "path is required"}
		}
		h.Service.InvalidateCache(path)
		w.WriteHeader(http.StatusNoContent)
		return nil
	default:
		return methodNotAllowed(w, "GET, POST, DELETE")
	}
}

func (h *RestHandler) checkExists(w http.ResponseWriter, r *http.Request) *apiError {
	query := r.URL.Query()
	path := strings.TrimSpace(query.Get("path"))
	if path == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "path is required"}
	}

	kind := strings.ToLower(strings.TrimSpace(query.Get("kind")))
	if kind == "" {
		kind = existsKindFile
	}

	var exists bool
	switch kind {
	case existsKindFile:
		exists = h.Service.FileExistsCached(path)
	case existsKindDir, "directory":
		kind = existsKindDir
		exists = h.Service.DirectoryExistsCached(path)
	default:
		return &apiError{Status: http.StatusBadRequest, Message: "kind must be file or dir"}
	}

	writeJSON(w, http.StatusOK, existsResponse{
		Path:   fsutil.Normalize(path),
		Kind:   kind,
		Exists: exists,
	})
	return nil
}

func (h *RestHandler) recordExists(w http.ResponseWriter, r *http.Request) *apiError {
	var request cacheResultRequest
	if err := decodeJSONBody(r, &request); err != nil {
		return err
	}
	if strings.TrimSpace(request.Path) == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "path is required"}
	}
	if request.Exists == nil {
		return &apiError{Status: http.StatusBadRequest, Message: "exists is required"}
	}

	h.Service.CacheResult(request.Path, *request.Exists)
	writeJSON(w, http.StatusOK, existsResponse{
		Path:   fsutil.Normalize(request.Path),
		Kind:   existsKindAny,
		Exists: *request.Exists,
	})
	return nil
}
