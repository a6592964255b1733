package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fswatch/internal/watcher"
)

func TestServeWSStreamWritesSnapshotThenBatches(t *testing.T) {
	output := make(chan watcher.BatchEvent, 1)
	handlerDone := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveWSStream(w, r, wsStreamConfig[watcher.BatchEvent]{
			Output: output,
			PreWrite: func(conn *websocket.Conn) error {
				return conn.WriteJSON(map[string]string{"type": "snapshot"})
			},
			BuildPayload: func(batch watcher.BatchEvent) (any, bool) {
				return batch, len(batch.Events) > 0
			},
		})
		close(handlerDone)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot map[string]string
	if err := conn.ReadJSON(&snapshot); err != nil || snapshot["type"] != "snapshot" {
		t.Fatalf("expected snapshot first, got %v (%v)", snapshot, err)
	}

	output <- watcher.BatchEvent{WatchID: "empty"}
	output <- watcher.BatchEvent{WatchID: "w1", Events: []watcher.Event{{Kind: watcher.Created, Path: "/w/a"}}}

	var batch watcher.BatchEvent
	if err := conn.ReadJSON(&batch); err != nil {
		t.Fatalf("read websocket: %v", err)
	}
	if batch.WatchID != "w1" || len(batch.Events) != 1 || batch.Events[0].Path != "/w/a" {
		t.Fatalf("unexpected batch: %#v", batch)
	}

	_ = conn.Close()
	select {
	case <-handlerDone:
	case <-time.After(time.Second):
		t.Fatalf("handler did not exit after close")
	}
}

func TestCloseCodeForStatus(t *testing.T) {
	cases := map[int]int{
		http.StatusBadRequest:          websocket.CloseProtocolError,
		http.StatusUnauthorized:        websocket.ClosePolicyViolation,
		http.StatusNotFound:            websocket.ClosePolicyViolation,
		http.StatusServiceUnavailable:  websocket.CloseTryAgainLater,
		http.StatusInternalServerError: websocket.CloseInternalServerErr,
	}
	for status, want := range cases {
		if got := closeCodeForStatus(status); got != want {
			t.Fatalf("status %d: expected close code %d, got %d", status, want, got)
		}
	}
}

func TestTruncateCloseReason(t *testing.T) {
	long := strings.Repeat("x", 200)
	if got := truncateCloseReason(long); len(got) != 123 {
		t.Fatalf("expected 123 bytes, got %d", len(got))
	}
	if got := truncateCloseReason("short"); got != "short" {
		t.Fatalf("expected short reason unchanged, got %q", got)
	}
}

func TestServeWSStreamSendsPings(t *testing.T) {
	output := make(chan string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveWSStream(w, r, wsStreamConfig[string]{
			Output:       output,
			PingInterval: 20 * time.Millisecond,
		})
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(data string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatalf("expected a ping from the server")
	}
}

func TestServeWSStreamClosesWhenOutputEnds(t *testing.T) {
	output := make(chan string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveWSStream(w, r, wsStreamConfig[string]{Output: output})
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	close(output)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}
