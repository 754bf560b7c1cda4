// Package eventlog keeps a bounded, in-memory history of recently proxied
// request URLs. It exists for diagnostics only.
package eventlog

import (
	"sync"
	"time"

	"github.com/mactrac-proxy/internal/pkg/id"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 200

// Event is one recorded proxy call.
type Event struct {
	ID   string    `json:"id"`
	URL  string    `json:"url"`
	Time time.Time `json:"time"`
}

// Log is a fixed-capacity FIFO of events. Safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	events []Event
	next   int // write position once the buffer is full
	full   bool
}

// New creates a Log holding at most capacity events. A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{events: make([]Event, 0, capacity)}
}

// Record appends url, evicting the oldest entry when full.
func (l *Log) Record(url string) {
	ev := Event{ID: id.New(), URL: url, Time: time.Now().UTC()}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		l.events = append(l.events, ev)
		if len(l.events) == cap(l.events) {
			l.full = true
		}
		return
	}
	l.events[l.next] = ev
	l.next = (l.next + 1) % len(l.events)
}

// Snapshot returns the stored events, oldest first.
func (l *Log) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0, len(l.events))
	out = append(out, l.events[l.next:]...)
	out = append(out, l.events[:l.next]...)
	return out
}

// Recent returns the stored URLs, oldest first.
func (l *Log) Recent() []string {
	snap := l.Snapshot()
	urls := make([]string, len(snap))
	for i, ev := range snap {
		urls[i] = ev.URL
	}
	return urls
}
