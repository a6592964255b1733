package cli

import (
	"bytes"
	"flag"
	"io"
	"strings"
	"testing"
)

func TestHelpFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"-h"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Help {
		t.Fatalf("expected help flag set")
	}
}

func TestVersionFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"--version"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Version {
		t.Fatalf("expected version flag set")
	}
}

func TestSetFlagsReportsExplicitFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Int("port", 0, "")
	fs.String("token", "", "")
	if err := fs.Parse([]string{"--port", "80"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	set := SetFlags(fs)
	if !set["port"] || set["token"] {
		t.Fatalf("unexpected set flags: %v", set)
	}
}

func TestWriteHelpAlignsSections(t *testing.T) {
	var out bytes.Buffer
	WriteHelp(&out, "fswatch [flags]", map[string][]HelpOption{
		"Flags": {
			{Name: "--port", Desc: "HTTP port"},
			{Name: "--cache-ttl", Desc: "Existence cache TTL"},
		},
		"Commands": nil,
	}, "Commands", "Flags")

	text := out.String()
	if !strings.HasPrefix(text, "Usage: fswatch [flags]\n") {
		t.Fatalf("unexpected usage line: %q", text)
	}
	if strings.Contains(text, "Commands:") {
		t.Fatalf("expected empty section to be skipped: %q", text)
	}
	if !strings.Contains(text, "  --port       HTTP port\n") {
		t.Fatalf("expected aligned rows, got %q", text)
	}
}
