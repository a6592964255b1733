// Package existcache remembers whether paths exist for a short time so hot
// existence checks do not hit the filesystem on every call.
package existcache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"fswatch/internal/fsutil"
	"fswatch/internal/logging"
	"fswatch/internal/metrics"
)

const (
	DefaultTTL        = time.Second
	DefaultMaxEntries = 4096
)

const (
	fileKeyPrefix = "file\x00"
	dirKeyPrefix  = "dir\x00"
)

type Options struct {
	TTL        time.Duration
	MaxEntries int
	Registry   *metrics.Registry
	// Sink receives best-effort reports about inconclusive or panicking
	// probes. Nil discards them.
	Sink logging.Sink
	Now  func() time.Time
}

type CacheStats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type entry struct {
	exists    bool
	checkedAt time.Time
}

// Cache maps normalized paths to their last probed existence.
//
// When the store holds MaxEntries entries, the next insert of a new key
// clears it completely. Reads never lock; the size check and the clear run
// under evictMu so concurrent overflowing inserts clear the store once.
type Cache struct {
	entries    *xsync.MapOf[string, entry]
	evictMu    sync.Mutex
	ttl        time.Duration
	maxEntries int
	registry   *metrics.Registry
	sink       logging.Sink
	now        func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		entries:    xsync.NewMapOf[string, entry](),
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		registry:   opts.Registry,
		sink:       opts.Sink,
		now:        opts.Now,
	}
}

// Check returns the cached existence of path, probing when the entry is
// missing or older than the TTL. Unknown probe results count as missing.
func (c *Cache) Check(path string, probe Probe) bool {
	return c.check("", path, probe)
}

// FileExists checks path with StatFileProbe.
func (c *Cache) FileExists(path string) bool {
	return c.check(fileKeyPrefix, path, StatFileProbe)
}

// DirectoryExists checks path with StatDirProbe.
func (c *Cache) DirectoryExists(path string) bool {
	return c.check(dirKeyPrefix, path, StatDirProbe)
}

// Invalidate drops every entry recorded for path.
func (c *Cache) Invalidate(path string) {
	if c == nil {
		return
	}
	normalized := fsutil.Normalize(path)
	if normalized == "" {
		return
	}
	c.entries.Delete(normalized)
	c.entries.Delete(fileKeyPrefix + normalized)
	c.entries.Delete(dirKeyPrefix + normalized)
}

// CacheResult records a known existence for path without probing. A path
// recorded as existing keeps its kind unknown, so only the generic entry is
// written and the kind-specific entries are dropped.
func (c *Cache) CacheResult(path string, exists bool) {
	if c == nil {
		return
	}
	normalized := fsutil.Normalize(path)
	if normalized == "" {
		return
	}
	c.store(normalized, exists)
	if exists {
		c.entries.Delete(fileKeyPrefix + normalized)
		c.entries.Delete(dirKeyPrefix + normalized)
		return
	}
	c.store(fileKeyPrefix+normalized, false)
	c.store(dirKeyPrefix+normalized, false)
}

// Clear empties the cache without counting an eviction.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.entries.Clear()
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Size()
}

func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{
		Entries:   c.entries.Size(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *Cache) check(prefix, path string, probe Probe) bool {
	if c == nil || probe == nil {
		return false
	}
	normalized := fsutil.Normalize(path)
	if normalized == "" {
		return false
	}
	key := prefix + normalized

	now := c.now()
	if cached, ok := c.entries.Load(key); ok && now.Sub(cached.checkedAt) < c.ttl {
		c.hits.Add(1)
		c.registry.IncCacheHit()
		return cached.exists
	}

	c.misses.Add(1)
	c.registry.IncCacheMiss()
	result := c.runProbe(probe, normalized)
	if result == Unknown {
		c.report(logging.LevelDebug, "existence probe inconclusive for "+normalized)
	}
	exists := result == Exists
	c.store(key, exists)
	return exists
}

func (c *Cache) runProbe(probe Probe, path string) (result ProbeResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.report(logging.LevelWarning, fmt.Sprintf("existence probe panicked for %s: %v", path, recovered))
			result = Unknown
		}
	}()
	return probe(path)
}

func (c *Cache) store(key string, exists bool) {
	if _, ok := c.entries.Load(key); !ok && c.entries.Size() >= c.maxEntries {
		c.evictMu.Lock()
		if c.entries.Size() >= c.maxEntries {
			c.entries.Clear()
			c.evictions.Add(1)
			c.registry.IncCacheEviction()
		}
		c.evictMu.Unlock()
	}
	c.entries.Store(key, entry{exists: exists, checkedAt: c.now()})
}

func (c *Cache) report(level logging.Level, message string) {
	if c.sink != nil {
		c.sink.Log(level, message)
	}
}
