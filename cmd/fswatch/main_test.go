package main

import (
	"bytes"
	"strings"
	"testing"

	"fswatch/internal/version"
)

func TestRunVersionCommand(t *testing.T) {
	previous := version.Version
	version.Version = "1.4.0"
	t.Cleanup(func() { version.Version = previous })

	var stdout, stderr bytes.Buffer
	if code := run([]string{"version"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected exit 0, got %d (%s)", code, stderr.String())
	}
	if got := stdout.String(); got != "fswatch 1.4.0\n" {
		t.Fatalf("unexpected version output %q", got)
	}

	stdout.Reset()
	if code := run([]string{"--version"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected exit 0 for --version, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "fswatch 1.4.0") {
		t.Fatalf("unexpected --version output %q", stdout.String())
	}
}

func TestRunSchemaCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"schema"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected exit 0, got %d (%s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"watches"`) {
		t.Fatalf("expected schema output, got %s", stdout.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--bogus"}, &stdout, &stderr); code != exitUsage {
		t.Fatalf("expected usage exit code, got %d", code)
	}
	if !strings.Contains(stderr.String(), "fswatch:") {
		t.Fatalf("expected error on stderr, got %q", stderr.String())
	}

	stdout.Reset()
	if code := run([]string{"--help"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected help to exit 0, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "Usage: fswatch") {
		t.Fatalf("expected usage text, got %q", stdout.String())
	}
}

func TestRunWithoutWatchesFails(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != exitFailure {
		t.Fatalf("expected failure without paths, got %d", code)
	}
	if !strings.Contains(stderr.String(), errNothingToWatch.Error()) {
		t.Fatalf("expected nothing-to-watch error, got %q", stderr.String())
	}
}
