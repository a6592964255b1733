package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fswatch/internal/existcache"
	"fswatch/internal/logging"
	"fswatch/internal/watcher"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, watchFile, err := loadConfig([]string{"some/dir"}, io.Discard)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("expected missing default watch file to be ignored, got %q", cfg.ConfigPath)
	}
	if len(watchFile.Watches) != 0 {
		t.Fatalf("expected no watches from file, got %#v", watchFile.Watches)
	}
	if cfg.Throttle != watcher.DefaultThrottleInterval {
		t.Fatalf("expected default throttle, got %s", cfg.Throttle)
	}
	if cfg.CacheTTL != existcache.DefaultTTL || cfg.CacheMax != existcache.DefaultMaxEntries {
		t.Fatalf("expected cache defaults, got %s/%d", cfg.CacheTTL, cfg.CacheMax)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Fatalf("expected info level, got %q", cfg.LogLevel)
	}
	if len(cfg.Paths) != 1 || cfg.Paths[0] != "some/dir" {
		t.Fatalf("expected positional path, got %v", cfg.Paths)
	}
	for _, key := range []string{"port", "throttle", "cache-ttl", "cache-max", "log-level"} {
		if cfg.Sources[key] != sourceDefault {
			t.Fatalf("expected %s from defaults, got %q", key, cfg.Sources[key])
		}
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FSWATCH_PORT", "9090")
	t.Setenv("FSWATCH_TOKEN", "secret")
	t.Setenv("FSWATCH_THROTTLE", "150ms")
	t.Setenv("FSWATCH_RECURSIVE", "true")
	t.Setenv("FSWATCH_FILTER", "*.go")
	t.Setenv("FSWATCH_CACHE_TTL", "5s")
	t.Setenv("FSWATCH_CACHE_MAX", "32")
	t.Setenv("FSWATCH_LOG_LEVEL", "debug")

	cfg, _, err := loadConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 9090 || cfg.AuthToken != "secret" {
		t.Fatalf("unexpected port/token: %d %q", cfg.Port, cfg.AuthToken)
	}
	if cfg.Throttle != 150*time.Millisecond || !cfg.Recursive || cfg.Filter != "*.go" {
		t.Fatalf("unexpected watch settings: %#v", cfg)
	}
	if cfg.CacheTTL != 5*time.Second || cfg.CacheMax != 32 {
		t.Fatalf("unexpected cache settings: %s/%d", cfg.CacheTTL, cfg.CacheMax)
	}
	if cfg.LogLevel != logging.LevelDebug {
		t.Fatalf("expected debug level, got %q", cfg.LogLevel)
	}
	if cfg.Sources["port"] != sourceEnv || cfg.Sources["recursive"] != sourceEnv {
		t.Fatalf("expected env sources, got %v", cfg.Sources)
	}
}

func TestLoadConfigIgnoresInvalidEnvNumbers(t *testing.T) {
	t.Setenv("FSWATCH_PORT", "not-a-number")
	t.Setenv("FSWATCH_THROTTLE", "soon")
	cfg, _, err := loadConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 0 || cfg.Sources["port"] != sourceDefault {
		t.Fatalf("expected default port, got %d from %q", cfg.Port, cfg.Sources["port"])
	}
	if cfg.Throttle != watcher.DefaultThrottleInterval {
		t.Fatalf("expected default throttle, got %s", cfg.Throttle)
	}
}

func TestLoadConfigRejectsInvalidEnvBool(t *testing.T) {
	t.Setenv("FSWATCH_RECURSIVE", "sometimes")
	if _, _, err := loadConfig(nil, io.Discard); err == nil {
		t.Fatalf("expected invalid bool error")
	}
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("FSWATCH_PORT", "9090")
	t.Setenv("FSWATCH_THROTTLE", "150ms")

	cfg, _, err := loadConfig([]string{"--port", "7070", "--throttle", "1s", "--quiet", "a", "b"}, io.Discard)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != 7070 || cfg.Sources["port"] != sourceFlag {
		t.Fatalf("expected flag port, got %d from %q", cfg.Port, cfg.Sources["port"])
	}
	if cfg.Throttle != time.Second || cfg.Sources["throttle"] != sourceFlag {
		t.Fatalf("expected flag throttle, got %s", cfg.Throttle)
	}
	if cfg.LogLevel != logging.LevelWarning {
		t.Fatalf("expected --quiet to select warnings, got %q", cfg.LogLevel)
	}
	if strings.Join(cfg.Paths, ",") != "a,b" {
		t.Fatalf("expected positional paths, got %v", cfg.Paths)
	}
}

func TestLoadConfigFlagValidation(t *testing.T) {
	cases := [][]string{
		{"--port", "-1"},
		{"--throttle", "0s"},
		{"--cache-max", "0"},
		{"--log-level", "loud"},
		{"--verbose", "--quiet"},
		{"--no-such-flag"},
	}
	for _, args := range cases {
		if _, _, err := loadConfig(args, io.Discard); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestLoadConfigHelp(t *testing.T) {
	var out strings.Builder
	_, _, err := loadConfig([]string{"--help"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(out.String(), "--cache-ttl") || !strings.Contains(out.String(), "schema") {
		t.Fatalf("expected help listing, got:\n%s", out.String())
	}
}

func TestLoadConfigWatchFileLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fswatch.toml")
	content := `throttle = "40ms"
max_batch = 10

[cache]
ttl = "3s"
max_entries = 64

[[watches]]
path = "/srv/data"
recursive = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write watch file: %v", err)
	}
	t.Setenv("FSWATCH_CACHE_MAX", "128")

	cfg, watchFile, err := loadConfig([]string{"--config", path}, io.Discard)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ConfigPath != path || cfg.Sources["config"] != sourceFlag {
		t.Fatalf("unexpected config path %q from %q", cfg.ConfigPath, cfg.Sources["config"])
	}
	if cfg.Throttle != 40*time.Millisecond || cfg.Sources["throttle"] != sourceFile {
		t.Fatalf("expected file throttle, got %s from %q", cfg.Throttle, cfg.Sources["throttle"])
	}
	if cfg.MaxBatch != 10 || cfg.CacheTTL != 3*time.Second {
		t.Fatalf("unexpected file values: %d %s", cfg.MaxBatch, cfg.CacheTTL)
	}
	if cfg.CacheMax != 128 || cfg.Sources["cache-max"] != sourceEnv {
		t.Fatalf("expected env to override file cache max, got %d", cfg.CacheMax)
	}
	if len(watchFile.Watches) != 1 || watchFile.Watches[0].Path != "/srv/data" {
		t.Fatalf("unexpected watches: %#v", watchFile.Watches)
	}
}

func TestLoadConfigMissingExplicitWatchFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	if _, _, err := loadConfig([]string{"--config", missing}, io.Discard); err == nil {
		t.Fatalf("expected error for explicit missing watch file")
	}
}
