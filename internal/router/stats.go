package router

import (
	"sync"
	"time"

	"github.com/atelierhq/loom-core/internal/types"
)

// DecisionEntry is one routing decision in the bounded log.
type DecisionEntry struct {
	At       time.Time
	Provider string
	Model    string
	Tier     types.Tier
}

// DecisionLog is a fixed-size ring of recent routing decisions.
type DecisionLog struct {
	mu      sync.Mutex
	entries []DecisionEntry
	next    int
	filled  bool
}

// NewDecisionLog creates a ring holding the most recent size decisions.
func NewDecisionLog(size int) *DecisionLog {
	if size <= 0 {
		size = 1024
	}
	return &DecisionLog{entries: make([]DecisionEntry, size)}
}

// Record appends one decision, overwriting the oldest when full.
func (l *DecisionLog) Record(e DecisionEntry) {
	l.mu.Lock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.filled = true
	}
	l.mu.Unlock()
}

// Since returns retained entries at or after t in chronological order.
func (l *DecisionLog) Since(t time.Time) []DecisionEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ordered []DecisionEntry
	if l.filled {
		ordered = append(ordered, l.entries[l.next:]...)
	}
	ordered = append(ordered, l.entries[:l.next]...)

	out := make([]DecisionEntry, 0, len(ordered))
	for _, e := range ordered {
		if !e.At.Before(t) {
			out = append(out, e)
		}
	}
	return out
}

// Stats aggregates routing decisions over a trailing window.
type Stats struct {
	WindowHours    int            `json:"window_hours"`
	TotalDecisions int            `json:"total_decisions"`
	ByTier         map[string]int `json:"by_tier"`
	ByProvider     map[string]int `json:"by_provider"`
	AvgHealthScore float64        `json:"avg_health_score"`

	// ApproxFailovers counts consecutive retained decisions that landed on
	// different providers. Two concurrent requests hitting two healthy
	// providers also count, so treat this as an upper bound on true
	// failovers.
	ApproxFailovers int `json:"approx_failovers"`
}

// Stats aggregates the decision log over the trailing window and attaches
// the current average health score.
func (e *Engine) Stats(hours int) *Stats {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	entries := e.log.Since(since)

	s := &Stats{
		WindowHours:    hours,
		TotalDecisions: len(entries),
		ByTier:         make(map[string]int),
		ByProvider:     make(map[string]int),
	}
	for i, entry := range entries {
		s.ByTier[string(entry.Tier)]++
		s.ByProvider[entry.Provider]++
		if i > 0 && entries[i-1].Provider != entry.Provider {
			s.ApproxFailovers++
		}
	}
	s.AvgHealthScore = e.tracker.AvgScore()
	return s
}
