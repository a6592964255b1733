package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"fswatch/internal/logging"
)

const (
	defaultLogLimit = 100
	maxLogReplay    = 200
)

type logQuery struct {
	Limit int
	Since *time.Time
	Level logging.Level
}

func (h *RestHandler) requireLogger() *apiError {
	if h.Logger == nil || h.Logger.Buffer() == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "log buffer unavailable"}
	}
	return nil
}

func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if err := h.requireLogger(); err != nil {
		return err
	}
	query, err := parseLogQuery(r)
	if err != nil {
		return err
	}

	var entries []logging.LogEntry
	if query.Level == "" && query.Since == nil {
		entries = h.Logger.Buffer().Tail(query.Limit)
	} else {
		entries = filterLogEntries(h.Logger.Buffer().List(), query)
	}
	if entries == nil {
		entries = []logging.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
	return nil
}

func parseLogQuery(r *http.Request) (logQuery, *apiError) {
	values := r.URL.Query()
	query := logQuery{
		Limit: defaultLogLimit,
	}

	if rawLimit := strings.TrimSpace(values.Get("limit")); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit <= 0 {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid limit"}
		}
		query.Limit = limit
	}

	if rawSince := strings.TrimSpace(values.Get("since")); rawSince != "" {
		parsed, err := time.Parse(time.RFC3339, rawSince)
		if err != nil {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid since timestamp"}
		}
		query.Since = &parsed
	}

	if rawLevel := strings.TrimSpace(values.Get("level")); rawLevel != "" {
		level, ok := logging.ParseLevel(rawLevel)
		if !ok {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid log level"}
		}
		query.Level = level
	}

	return query, nil
}

func filterLogEntries(entries []logging.LogEntry, query logQuery) []logging.LogEntry {
	filtered := make([]logging.LogEntry, 0, len(entries))
	for _, entry := range entries {
		if query.Level != "" && !logging.LevelAtLeast(entry.Level, query.Level) {
			continue
		}
		if query.Since != nil && entry.Timestamp.Before(*query.Since) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if query.Limit > 0 && len(filtered) > query.Limit {
		filtered = filtered[len(filtered)-query.Limit:]
	}
	return filtered
}

// serveLogStream streams daemon log entries. ?level= sets the minimum level
// and ?replay= sends that many buffered entries first.
func serveLogStream(w http.ResponseWriter, r *http.Request, config Config, logger *logging.Logger) {
	if !requireWSToken(w, r, config.AuthToken, logger) {
		return
	}

	query := r.URL.Query()
	var minLevel logging.Level
	if rawLevel := strings.TrimSpace(query.Get("level")); rawLevel != "" {
		if level, ok := logging.ParseLevel(rawLevel); ok {
			minLevel = level
		}
	}
	replay, _ := strconv.Atoi(query.Get("replay"))
	if replay > maxLogReplay {
		replay = maxLogReplay
	}

	output, cancel := logger.Subscribe()
	defer cancel()
	var history []logging.LogEntry
	if output != nil && replay > 0 {
		history = logger.Buffer().Tail(replay)
	}

	conn, err := upgradeWebSocket(w, r, config.AllowedOrigins)
	if err != nil {
		logWSError(logger, r, wsError{
			Status:  http.StatusBadRequest,
			Message: "websocket upgrade failed",
			Err:     err,
		})
		return
	}
	if output == nil {
		writeWSError(w, r, conn, logger, wsError{
			Status:  http.StatusInternalServerError,
			Message: "log stream unavailable",
		})
		return
	}

	spanCtx, span := startWebSocketSpan(r, r.URL.Path)
	defer span.End()
	r = r.WithContext(spanCtx)

	buildPayload := func(entry logging.LogEntry) (any, bool) {
		if minLevel != "" && !logging.LevelAtLeast(entry.Level, minLevel) {
			return nil, false
		}
		return entry, true
	}
	serveWSStream(w, r, wsStreamConfig[logging.LogEntry]{
		AllowedOrigins: config.AllowedOrigins,
		Conn:           conn,
		Logger:         logger,
		Output:         output,
		BuildPayload:   buildPayload,
		PreWrite: func(conn *websocket.Conn) error {
			sent := 0
			defer func() { recordReplay(span, sent) }()
			for _, entry := range history {
				payload, ok := buildPayload(entry)
				if !ok {
					continue
				}
				if err := conn.WriteJSON(payload); err != nil {
					return err
				}
				sent++
			}
			return nil
		},
	})
}
