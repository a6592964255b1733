package watcher

import (
	"strings"

	"github.com/gobwas/glob"

	"fswatch/internal/fsutil"
)

// Filter matches event paths against a glob pattern. A nil Filter matches
// everything.
type Filter struct {
	pattern string
	matcher glob.Glob
}

// CompileFilter compiles pattern with '/' as the separator, so '*' never
// crosses directories and '**' does.
func CompileFilter(pattern string) (*Filter, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return nil, nil
	}
	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	return &Filter{pattern: pattern, matcher: matcher}, nil
}

// exactFilter matches a single base name literally.
func exactFilter(name string) *Filter {
	quoted := glob.QuoteMeta(name)
	return &Filter{pattern: quoted, matcher: glob.MustCompile(quoted, '/')}
}

func (f *Filter) Pattern() string {
	if f == nil {
		return ""
	}
	return f.pattern
}

// Match reports whether path, located under root, passes the filter.
func (f *Filter) Match(root, path string) bool {
	if f == nil {
		return true
	}
	if f.matcher.Match(fsutil.Base(path)) {
		return true
	}
	rel, ok := fsutil.Rel(root, path)
	return ok && rel != "" && f.matcher.Match(rel)
}

// MatchEvent passes renames when either side matches.
func (f *Filter) MatchEvent(root string, event Event) bool {
	if f.Match(root, event.Path) {
		return true
	}
	return event.OldPath != "" && f.Match(root, event.OldPath)
}
