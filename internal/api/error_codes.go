package api

import (
	"errors"
	"net/http"

	"fswatch/internal/watcher"
)

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		if status >= http.StatusInternalServerError {
			return "internal_error"
		}
	}
	return ""
}

// watchAPIError maps watcher failures onto HTTP statuses.
func watchAPIError(err error) *apiError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, watcher.ErrInvalidArgument):
		return &apiError{Status: http.StatusBadRequest, Message: err.Error(), Code: "invalid_argument"}
	case errors.Is(err, watcher.ErrNotFound):
		return &apiError{Status: http.StatusNotFound, Message: err.Error(), Code: "path_not_found"}
	case errors.Is(err, watcher.ErrManagerClosed):
		return &apiError{Status: http.StatusServiceUnavailable, Message: err.Error()}
	case errors.Is(err, watcher.ErrIOFailure):
		return &apiError{Status: http.StatusInternalServerError, Message: err.Error(), Code: "io_failure"}
	default:
		return &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
}
