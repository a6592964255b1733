package logging

import (
	"sync"
	"sync/atomic"

	"fswatch/internal/buffer"
)

type LogBuffer struct {
	mu      sync.Mutex
	entries *buffer.Ring[LogEntry]
	evicted atomic.Uint64
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{
		entries: buffer.NewRing[LogEntry](size),
	}
}

func (b *LogBuffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.entries == nil {
		return
	}

	if b.entries.Add(entry) {
		b.evicted.Add(1)
	}
}

func (b *LogBuffer) List() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.entries.List()
}

// Tail returns the newest n entries, oldest first.
func (b *LogBuffer) Tail(n int) []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.entries.Last(n)
}

// Evicted reports how many entries were overwritten since creation.
func (b *LogBuffer) Evicted() uint64 {
	return b.evicted.Load()
}
