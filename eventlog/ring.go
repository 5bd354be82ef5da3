// Package eventlog keeps the operator-facing activity log: a bounded,
// append-only ring of the most recent entries.
package eventlog

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of entries retained by NewRing(0).
const DefaultLimit = 21

// Severity classifies an entry for display.
type Severity string

const (
	Info    Severity = "info"
	Warning Severity = "warning"
	Error   Severity = "error"
	Success Severity = "success"
)

var severityMarks = map[Severity]string{
	Info:    "ℹ️",
	Warning: "⚠️",
	Error:   "❌",
	Success: "✅",
}

// Entry is one line of the activity log.
type Entry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
	Severity  Severity `json:"type"`
}

// Logger is the write side of the activity log.
type Logger interface {
	Log(sev Severity, message string)
}

// Ring stores the most recent entries and notifies subscribers of each new one.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	prefix  string
	subs    []func(Entry)
	now     func() time.Time
}

// NewRing creates a ring retaining limit entries (DefaultLimit when <= 0).
// prefix tags mirrored process-log lines, e.g. a short session id.
func NewRing(limit int, prefix string) *Ring {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ring{
		entries: make([]Entry, 0, limit),
		limit:   limit,
		prefix:  prefix,
		now:     time.Now,
	}
}

// Log appends an entry, mirrors it to the process log and notifies subscribers.
func (r *Ring) Log(sev Severity, message string) {
	r.Append(sev, message)
}

// Append is Log returning the stored entry.
func (r *Ring) Append(sev Severity, message string) Entry {
	r.mu.Lock()
	e := Entry{
		ID:        uuid.NewString()[:7],
		Timestamp: r.now().Format("15:04:05"),
		Message:   message,
		Severity:  sev,
	}
	if len(r.entries) == r.limit {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.limit-1]
	}
	r.entries = append(r.entries, e)
	subs := append([]func(Entry){}, r.subs...)
	r.mu.Unlock()

	if r.prefix != "" {
		log.Printf("%s [%s] %s", severityMarks[sev], r.prefix, message)
	} else {
		log.Printf("%s %s", severityMarks[sev], message)
	}
	for _, fn := range subs {
		fn(e)
	}
	return e
}

// Subscribe registers fn to be called after every append.
func (r *Ring) Subscribe(fn func(Entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Entries returns a copy of the retained entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Discard is a Logger that drops every entry.
var Discard Logger = discard{}

type discard struct{}

func (discard) Log(Severity, string) {}
