package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fswatch/internal/logging"
)

func newLogTestServer(t *testing.T) (*httptest.Server, *logging.Logger) {
	t.Helper()
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(32), logging.LevelInfo, io.Discard)
	mux := http.NewServeMux()
	RegisterRoutes(mux, Config{Logger: logger})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		logger.Close()
	})
	return srv, logger
}

func TestLogsEndpointFiltersAndLimits(t *testing.T) {
	srv, logger := newLogTestServer(t)
	logger.Info("first", nil)
	logger.Warn("second", nil)
	logger.Error("third", map[string]string{"path": "/w"})

	var entries []logging.LogEntry
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/logs?limit=2", nil, &entries); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(entries) != 2 || entries[0].Message != "second" || entries[1].Message != "third" {
		t.Fatalf("unexpected tail: %#v", entries)
	}

	entries = nil
	doJSON(t, http.MethodGet, srv.URL+"/api/logs?level=warning", nil, &entries)
	if len(entries) != 2 || entries[0].Level != logging.LevelWarning {
		t.Fatalf("expected warning and error entries, got %#v", entries)
	}

	cases := []string{"?limit=0", "?limit=x", "?level=loud", "?since=yesterday"}
	for _, query := range cases {
		var errResp errorResponse
		if status := doJSON(t, http.MethodGet, srv.URL+"/api/logs"+query, nil, &errResp); status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, status)
		}
	}

	var errResp errorResponse
	if status := doJSON(t, http.MethodPost, srv.URL+"/api/logs", nil, &errResp); status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
}

func TestLogsEndpointWithoutLogger(t *testing.T) {
	rest := &RestHandler{}
	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	if err := rest.handleLogs(res, req); err == nil || err.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %#v", err)
	}
}

func TestLogStreamReplaysAndFilters(t *testing.T) {
	srv, logger := newLogTestServer(t)
	logger.Info("before", nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/logs?level=warning&replay=10"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	logger.Info("skipped", nil)
	logger.Warn("streamed", nil)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var entry logging.LogEntry
	if err := conn.ReadJSON(&entry); err != nil {
		t.Fatalf("read websocket: %v", err)
	}
	if entry.Message != "streamed" || entry.Level != logging.LevelWarning {
		t.Fatalf("expected streamed warning, got %#v", entry)
	}
}
