package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"fswatch/internal/event"
	"fswatch/internal/logging"
)

type wsBusStreamConfig[T any] struct {
	Logger            *logging.Logger
	AuthToken         string
	AllowedOrigins    []string
	Bus               *event.Bus[T]
	Filter            func(T) bool
	Replay            int
	UnavailableReason string
	BuildPayload      func(T) (any, bool)
	SpanAttributes    []attribute.KeyValue
}

// serveWSBusStream streams bus events to a websocket. A missing bus still
// upgrades so the client receives a close frame with the reason.
func serveWSBusStream[T any](w http.ResponseWriter, r *http.Request, config wsBusStreamConfig[T]) {
	if !requireWSToken(w, r, config.AuthToken, config.Logger) {
		return
	}

	var (
		output  <-chan T
		history []T
		cancel  = func() {}
	)
	if config.Bus != nil {
		output, cancel = config.Bus.SubscribeFiltered(config.Filter)
		if config.Replay > 0 {
			history = config.Bus.DumpHistory()
		}
	}
	defer cancel()

	conn, err := upgradeWebSocket(w, r, config.AllowedOrigins)
	if err != nil {
		logWSError(config.Logger, r, wsError{
			Status:  http.StatusBadRequest,
			Message: "websocket upgrade failed",
			Err:     err,
		})
		return
	}

	if output == nil {
		writeWSError(w, r, conn, config.Logger, wsError{
			Status:  http.StatusInternalServerError,
			Message: unavailableReason(config.UnavailableReason),
		})
		return
	}

	spanCtx, span := startWebSocketSpan(r, r.URL.Path, config.SpanAttributes...)
	defer span.End()
	r = r.WithContext(spanCtx)

	var preWrite func(*websocket.Conn) error
	if len(history) > 0 {
		if len(history) > config.Replay {
			history = history[len(history)-config.Replay:]
		}
		preWrite = func(conn *websocket.Conn) error {
			sent := 0
			defer func() { recordReplay(span, sent) }()
			for _, item := range history {
				if config.Filter != nil && !config.Filter(item) {
					continue
				}
				built, ok := any(item), true
				if config.BuildPayload != nil {
					built, ok = config.BuildPayload(item)
				}
				if !ok {
					continue
				}
				if err := conn.WriteJSON(built); err != nil {
					return err
				}
				sent++
			}
			return nil
		}
	}

	serveWSStream(w, r, wsStreamConfig[T]{
		AllowedOrigins: config.AllowedOrigins,
		Conn:           conn,
		Logger:         config.Logger,
		Output:         output,
		BuildPayload:   config.BuildPayload,
		PreWrite:       preWrite,
	})
}

func unavailableReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "event stream unavailable"
	}
	return reason
}
