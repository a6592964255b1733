// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"strconv"
)

// Version values are set at build time using -ldflags.
var Version = "dev"
var Major = "0"
var Minor = "0"
var Patch = "0"
var Built = ""
var GitCommit = ""

type VersionInfo struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built"`
	GitCommit string `json:"git_commit,omitempty"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// String renders the version with the commit and build date when known.
func (info VersionInfo) String() string {
	text := info.Version
	if text == "" || text == "dev" {
		text = fmt.Sprintf("%d.%d.%d-dev", info.Major, info.Minor, info.Patch)
	}
	if info.GitCommit != "" {
		text += " (" + shortCommit(info.GitCommit) + ")"
	}
	if info.Built != "" {
		text += " built " + info.Built
	}
	return text
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
