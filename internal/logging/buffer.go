package logging

import (
	"sync"
	"time"
)

// LogEntry represents a single log line stored in the ring buffer.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the newest log entries. Entries are numbered from 1 and
// entry n lives in slot n % capacity, so the buffer holds exactly the
// sequence range (last-count, last].
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	last    uint64
}

// NewRingBuffer creates a ring buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, max(size, 1))}
}

// Write stores entry, evicting the oldest one when full, and returns it
// stamped with its sequence number.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.last++
	entry.Seq = rb.last
	rb.entries[rb.last%uint64(len(rb.entries))] = entry
	return entry
}

// ReadAll returns all entries in chronological order.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Since(0)
}

// Since returns the entries with a sequence number above after, oldest
// first. Entries already evicted are silently missing.
func (rb *RingBuffer) Since(after uint64) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	first := rb.first()
	if after >= first {
		first = after + 1
	}
	if first > rb.last {
		return nil
	}

	size := uint64(len(rb.entries))
	out := make([]LogEntry, 0, rb.last-first+1)
	for seq := first; seq <= rb.last; seq++ {
		out = append(out, rb.entries[seq%size])
	}
	return out
}

// ReadLast returns up to n of the newest entries, oldest first. A
// non-positive n returns everything.
func (rb *RingBuffer) ReadLast(n int) []LogEntry {
	all := rb.ReadAll()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Count returns the number of entries in the buffer.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return int(rb.last + 1 - rb.first())
}

// LastSeq returns the sequence number of the newest entry, 0 when empty.
func (rb *RingBuffer) LastSeq() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.last
}

// first is the oldest retained sequence number; rb.last+1 when empty.
func (rb *RingBuffer) first() uint64 {
	size := uint64(len(rb.entries))
	if rb.last < size {
		return 1
	}
	return rb.last - size + 1
}
