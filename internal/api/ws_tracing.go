package api

import (
	"context"
	"net/http"
	"path"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	wsTracerName      = "fswatch/ws"
	wsConnectSpanName = "websocket.connect"
	wsReplayEventName = "websocket.replay"
)

// startWebSocketSpan opens the server span covering a websocket stream's
// lifetime. Incoming trace context headers are honored.
func startWebSocketSpan(r *http.Request, route string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx := context.Background()
	if r != nil {
		ctx = otelapi.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	}

	spanAttrs := append(wsSpanAttributes(r, route), attrs...)
	return otelapi.Tracer(wsTracerName).Start(ctx, wsConnectSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(spanAttrs...),
	)
}

// recordReplay notes how many buffered items were sent before live streaming.
func recordReplay(span trace.Span, sent int) {
	if span == nil || sent <= 0 {
		return
	}
	span.AddEvent(wsReplayEventName, trace.WithAttributes(attribute.Int("replay.count", sent)))
}

func wsSpanAttributes(r *http.Request, route string) []attribute.KeyValue {
	attributes := make([]attribute.KeyValue, 0, 6)
	if r != nil {
		attributes = append(attributes,
			attribute.String("http.method", r.Method),
			attribute.String("http.target", sanitizeWSTarget(r)),
			attribute.String("http.scheme", wsRequestScheme(r)),
		)
		if r.RemoteAddr != "" {
			attributes = append(attributes, attribute.String("net.peer.addr", r.RemoteAddr))
		}
	}
	if route = strings.TrimSpace(route); route != "" {
		attributes = append(attributes,
			attribute.String("http.route", route),
			attribute.String("fswatch.stream", path.Base(route)),
		)
	}
	return attributes
}

func wsRequestScheme(r *http.Request) string {
	switch {
	case r == nil:
		return "http"
	case r.URL != nil && r.URL.Scheme != "":
		return r.URL.Scheme
	case r.TLS != nil:
		return "https"
	default:
		return "http"
	}
}

// sanitizeWSTarget drops the auth token from the recorded request target.
func sanitizeWSTarget(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	target := *r.URL
	query := target.Query()
	query.Del("token")
	target.RawQuery = query.Encode()
	return target.RequestURI()
}
