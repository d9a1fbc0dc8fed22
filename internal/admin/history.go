package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnbot/opportunity-hunter/internal/pipeline"
)

// Entry records one completed tick for the admin dashboard's run
// history, identified the same way the teacher identifies a scrape
// run: a generated UUID rather than a sequential counter, so entries
// stay stable if history is ever persisted.
type Entry struct {
	ID        uuid.UUID        `json:"id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Summary   pipeline.Summary `json:"summary"`
	Error     string           `json:"error,omitempty"`
}

// History keeps the most recent N tick records in memory.
type History struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewHistory builds a History retaining up to max entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 50
	}
	return &History{max: max}
}

// Record appends a completed tick to the front of the history,
// trimming the oldest entry once the buffer is full.
func (h *History) Record(summary pipeline.Summary, err error) Entry {
	entry := Entry{
		ID:        uuid.New(),
		StartedAt: summary.StartedAt,
		Duration:  summary.Duration,
		Summary:   summary,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	h.mu.Lock()
	h.entries = append([]Entry{entry}, h.entries...)
	if len(h.entries) > h.max {
		h.entries = h.entries[:h.max]
	}
	h.mu.Unlock()

	return entry
}

// Recent returns up to limit entries, most recent first.
func (h *History) Recent(limit int) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 || limit > len(h.entries) {
		limit = len(h.entries)
	}
	out := make([]Entry, limit)
	copy(out, h.entries[:limit])
	return out
}
