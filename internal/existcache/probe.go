package existcache

import (
	"errors"
	"io/fs"
	"os"
)

// ProbeResult is the outcome of asking the filesystem whether a path exists.
type ProbeResult int

const (
	Unknown ProbeResult = iota
	Exists
	NotExists
)

func (r ProbeResult) String() string {
	switch r {
	case Exists:
		return "exists"
	case NotExists:
		return "not_exists"
	default:
		return "unknown"
	}
}

// Probe reports whether a normalized path exists. It must not panic.
type Probe func(path string) ProbeResult

// StatFileProbe reports Exists only for paths that stat as non-directories.
func StatFileProbe(path string) ProbeResult {
	return statProbe(path, false)
}

// StatDirProbe reports Exists only for paths that stat as directories.
func StatDirProbe(path string) ProbeResult {
	return statProbe(path, true)
}

func statProbe(path string, wantDir bool) ProbeResult {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NotExists
		}
		return Unknown
	}
	if info.IsDir() == wantDir {
		return Exists
	}
	return NotExists
}
