package server

import (
	"sync"

	"github.com/mj1618/deskmirror/internal/output"
)

// DefaultEventLogSize is the number of events kept for recent_events.
const DefaultEventLogSize = 256

// EventLog keeps the most recent event records in a fixed-size ring.
type EventLog struct {
	mu      sync.Mutex
	entries []output.EventRecord
	next    int
	full    bool
	total   int
}

// NewEventLog creates a log holding up to size records. A size of 0 or less
// uses DefaultEventLogSize.
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{entries: make([]output.EventRecord, size)}
}

// Add appends r, evicting the oldest record when the log is full.
func (l *EventLog) Add(r output.EventRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = r
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.total++
}

// Recent returns up to limit records, oldest first. A limit of 0 or less
// returns everything held.
func (l *EventLog) Recent(limit int) []output.EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.full {
		n = len(l.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]output.EventRecord, 0, limit)
	start := l.next - limit
	if start < 0 {
		start += len(l.entries)
	}
	for i := 0; i < limit; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}

// Total returns how many records were ever added.
func (l *EventLog) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
