package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"fswatch/internal/schema"
)

const watchFileSchemaName = "watch-file"

// WatchFile declares watches started at boot and overrides for the daemon
// defaults. Durations use Go duration syntax such as "250ms".
type WatchFile struct {
	Throttle string       `json:"throttle,omitempty" toml:"throttle" yaml:"throttle" jsonschema:"description=Default quiet period before a batch is delivered"`
	MaxBatch int          `json:"max_batch,omitempty" toml:"max_batch" yaml:"max_batch" jsonschema:"minimum=0"`
	Cache    CacheSection `json:"cache,omitempty" toml:"cache" yaml:"cache"`
	Watches  []WatchEntry `json:"watches,omitempty" toml:"watches" yaml:"watches"`
}

type CacheSection struct {
	TTL        string `json:"ttl,omitempty" toml:"ttl" yaml:"ttl" jsonschema:"description=Existence cache entry lifetime"`
	MaxEntries int    `json:"max_entries,omitempty" toml:"max_entries" yaml:"max_entries" jsonschema:"minimum=0"`
}

type WatchEntry struct {
	Path      string `json:"path" toml:"path" yaml:"path" jsonschema:"required,minLength=1"`
	Recursive bool   `json:"recursive,omitempty" toml:"recursive" yaml:"recursive"`
	Filter    string `json:"filter,omitempty" toml:"filter" yaml:"filter" jsonschema:"description=Glob matched against base names and relative paths"`
	Throttle  string `json:"throttle,omitempty" toml:"throttle" yaml:"throttle"`
	MaxBatch  int    `json:"max_batch,omitempty" toml:"max_batch" yaml:"max_batch" jsonschema:"minimum=0"`
}

var watchFileSchemas = newWatchFileSchemas()

func newWatchFileSchemas() *schema.Registry {
	registry := schema.NewRegistry()
	if err := registry.RegisterType(watchFileSchemaName, &WatchFile{}); err != nil {
		panic(err)
	}
	return registry
}

// loadWatchFile reads a TOML or YAML watch file, validates it against the
// reflected schema and decodes it.
func loadWatchFile(path string) (WatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WatchFile{}, fmt.Errorf("read watch file: %w", err)
	}
	file, err := decodeWatchFile(path, data)
	if err != nil {
		return WatchFile{}, fmt.Errorf("watch file %s: %w", path, err)
	}
	return file, nil
}

func decodeWatchFile(path string, data []byte) (WatchFile, error) {
	var (
		raw  map[string]any
		file WatchFile
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return WatchFile{}, err
		}
		if err := validateWatchFile(raw); err != nil {
			return WatchFile{}, err
		}
		if _, err := toml.Decode(string(data), &file); err != nil {
			return WatchFile{}, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return WatchFile{}, err
		}
		if err := validateWatchFile(raw); err != nil {
			return WatchFile{}, err
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&file); err != nil && err != io.EOF {
			return WatchFile{}, err
		}
	default:
		return WatchFile{}, fmt.Errorf("unsupported watch file extension %q", filepath.Ext(path))
	}

	if _, _, err := file.durations(); err != nil {
		return WatchFile{}, err
	}
	for index, entry := range file.Watches {
		if strings.TrimSpace(entry.Path) == "" {
			return WatchFile{}, fmt.Errorf("watches[%d].path: value cannot be empty", index)
		}
		if _, err := parseOptionalDuration(entry.Throttle); err != nil {
			return WatchFile{}, fmt.Errorf("watches[%d].throttle: %w", index, err)
		}
	}
	return file, nil
}

func validateWatchFile(raw map[string]any) error {
	s, err := watchFileSchemas.Resolve(watchFileSchemaName)
	if err != nil {
		return err
	}
	return schema.ValidateObject(s, raw)
}

func (f WatchFile) durations() (throttle, cacheTTL time.Duration, err error) {
	if throttle, err = parseOptionalDuration(f.Throttle); err != nil {
		return 0, 0, fmt.Errorf("throttle: %w", err)
	}
	if cacheTTL, err = parseOptionalDuration(f.Cache.TTL); err != nil {
		return 0, 0, fmt.Errorf("cache.ttl: %w", err)
	}
	return throttle, cacheTTL, nil
}

func parseOptionalDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	return value, nil
}

func writeWatchFileSchema(out io.Writer) error {
	s, err := watchFileSchemas.Resolve(watchFileSchemaName)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(payload))
	return err
}
