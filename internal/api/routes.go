package api

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"fswatch/internal/event"
	"fswatch/internal/fswatch"
	"fswatch/internal/logging"
	"fswatch/internal/watcher"
)

const maxEventReplay = 64

type Config struct {
	Service        *fswatch.Service
	AuthToken      string
	AllowedOrigins []string
	Logger         *logging.Logger
}

func RegisterRoutes(mux *http.ServeMux, config Config) {
	logger := config.Logger
	if logger == nil && config.Service != nil {
		logger = config.Service.Logger()
	}
	authToken := config.AuthToken
	rest := &RestHandler{
		Service: config.Service,
		Logger:  logger,
	}
	wrap := func(handler http.Handler) http.Handler {
		return loggingMiddleware(logger, handler)
	}

	mux.Handle("/api/status", wrap(restHandler(authToken, logger, rest.handleStatus)))
	mux.Handle("/api/watches", wrap(restHandler(authToken, logger, rest.handleWatches)))
	mux.Handle("/api/watches/", wrap(restHandler(authToken, logger, rest.handleWatch)))
	mux.Handle("/api/exists", wrap(restHandler(authToken, logger, rest.handleExists)))
	mux.Handle("/api/logs", wrap(restHandler(authToken, logger, rest.handleLogs)))
	mux.Handle("/metrics", wrap(securityHeadersHandler(cacheControlNoCache, func(w http.ResponseWriter, r *http.Request) {
		if !validateToken(r, authToken) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		rest.handleMetrics(w, r)
	})))
	mux.Handle("/ws/events", wrap(securityHeadersHandler(cacheControlNoStore, func(w http.ResponseWriter, r *http.Request) {
		serveWatchEvents(w, r, config, logger)
	})))
	mux.Handle("/ws/logs", wrap(securityHeadersHandler(cacheControlNoStore, func(w http.ResponseWriter, r *http.Request) {
		serveLogStream(w, r, config, logger)
	})))
}

// serveWatchEvents streams delivered batches. ?watch= limits the stream to
// one subscription and ?replay= sends up to that many recent batches first.
func serveWatchEvents(w http.ResponseWriter, r *http.Request, config Config, logger *logging.Logger) {
	var bus *event.Bus[watcher.BatchEvent]
	if config.Service != nil {
		bus = config.Service.Bus()
	}

	query := r.URL.Query()
	watchID := strings.TrimSpace(query.Get("watch"))
	var filter func(watcher.BatchEvent) bool
	var attrs []attribute.KeyValue
	if watchID != "" {
		attrs = append(attrs, attribute.String("watch.id", watchID))
		filter = func(batch watcher.BatchEvent) bool {
			return batch.WatchID == watchID
		}
	}

	replay, _ := strconv.Atoi(query.Get("replay"))
	if replay < 0 {
		replay = 0
	}
	if replay > maxEventReplay {
		replay = maxEventReplay
	}

	serveWSBusStream(w, r, wsBusStreamConfig[watcher.BatchEvent]{
		Logger:            logger,
		AuthToken:         config.AuthToken,
		AllowedOrigins:    config.AllowedOrigins,
		Bus:               bus,
		Filter:            filter,
		Replay:            replay,
		UnavailableReason: "watch event stream unavailable",
		SpanAttributes:    attrs,
	})
}
