package logging

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEntry is one record kept for the log stream.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Filter selects log entries by module and minimum level.
// The zero value matches everything.
type Filter struct {
	Module   string
	MinLevel *slog.Level
}

// NewFilter builds a Filter from textual options. An empty or unknown
// level matches all levels.
func NewFilter(module, level string) Filter {
	return Filter{Module: module, MinLevel: parseLevel(level)}
}

// Match reports whether an entry from module at level passes the filter.
func (f Filter) Match(module, level string) bool {
	if f.Module != "" && !strings.EqualFold(f.Module, module) {
		return false
	}
	if f.MinLevel != nil {
		if l := parseLevel(level); l != nil && *l < *f.MinLevel {
			return false
		}
	}
	return true
}

// RingBuffer keeps the most recent log entries. Safe for concurrent use.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingBuffer returns a buffer holding at most size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write stores entry, dropping the oldest one when the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
	rb.mu.Unlock()
}

// ReadAll returns the buffered entries, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Read(Filter{})
}

// Read returns the buffered entries that match f, oldest first.
func (rb *RingBuffer) Read(f Filter) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []LogEntry
	collect := func(entries []LogEntry) {
		for _, e := range entries {
			if f.Match(e.Module, e.Level) {
				result = append(result, e)
			}
		}
	}
	if rb.full {
		collect(rb.entries[rb.next:])
	}
	collect(rb.entries[:rb.next])
	return result
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}
