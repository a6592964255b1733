package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fswatch/internal/logging"
	"fswatch/internal/watcher"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testDaemonConfig() Config {
	return Config{
		Throttle: 20 * time.Millisecond,
		CacheTTL: time.Second,
		CacheMax: 16,
		LogLevel: logging.LevelDebug,
	}
}

func TestRunDaemonPrintsBatchesUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	cfg := testDaemonConfig()
	cfg.Paths = []string{dir}

	out := &syncBuffer{}
	logger := logging.NewLoggerWithOutput(nil, logging.LevelDebug, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, cfg, WatchFile{}, logger, out)
	}()

	target := filepath.Join(dir, "hello.txt")
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), "hello.txt") && time.Now().Before(deadline) {
		_ = os.WriteFile(target, []byte("x"), 0o644)
		time.Sleep(50 * time.Millisecond)
	}
	if !strings.Contains(out.String(), "hello.txt") {
		t.Fatalf("expected event line for hello.txt, got %q", out.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("daemon did not stop after cancel")
	}
}

func TestRunDaemonFailsOnMissingPath(t *testing.T) {
	cfg := testDaemonConfig()
	cfg.Paths = []string{filepath.Join(t.TempDir(), "missing")}
	err := runDaemon(context.Background(), cfg, WatchFile{}, logging.Discard(), io.Discard)
	if !errors.Is(err, watcher.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRunDaemonRequiresWork(t *testing.T) {
	err := runDaemon(context.Background(), testDaemonConfig(), WatchFile{}, logging.Discard(), io.Discard)
	if !errors.Is(err, errNothingToWatch) {
		t.Fatalf("expected errNothingToWatch, got %v", err)
	}
}

func TestRunDaemonServesAPI(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	cfg := testDaemonConfig()
	cfg.Port = port
	dir := t.TempDir()
	watchFile := WatchFile{Watches: []WatchEntry{{Path: dir, Recursive: true, Throttle: "30ms"}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, cfg, watchFile, logging.Discard(), io.Discard)
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/api/watches"
	var list []map[string]any
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		res, err := http.Get(url)
		if err == nil {
			err = json.NewDecoder(res.Body).Decode(&list)
			res.Body.Close()
			if err == nil {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(list) != 1 || list[0]["recursive"] != true || list[0]["throttle_ms"] != float64(30) {
		t.Fatalf("unexpected watch list: %#v", list)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("daemon did not stop after cancel")
	}
}

func TestBatchPrinterFormatsRenames(t *testing.T) {
	var out bytes.Buffer
	printer := &batchPrinter{out: &out}
	printer.print("w1", []watcher.Event{
		{Kind: watcher.Created, Path: "/d/a"},
		{Kind: watcher.Renamed, Path: "/d/b", OldPath: "/d/a"},
	})
	want := "w1\tcreated\t/d/a\nw1\trenamed\t/d/a -> /d/b\n"
	if out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
}
