package router

import (
	"testing"
	"time"

	"github.com/atelierhq/loom-core/internal/types"
)

func TestDecisionLogRingOverwrites(t *testing.T) {
	l := NewDecisionLog(4)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 6; i++ {
		l.Record(DecisionEntry{
			At:       base.Add(time.Duration(i) * time.Second),
			Provider: string(rune('a' + i)),
			Tier:     types.TierHostedFast,
		})
	}

	got := l.Since(time.Time{})
	if len(got) != 4 {
		t.Fatalf("Since returned %d entries, want 4", len(got))
	}
	// The two oldest were overwritten; the rest come back in order.
	want := []string{"c", "d", "e", "f"}
	for i, e := range got {
		if e.Provider != want[i] {
			t.Errorf("entry[%d].Provider = %q, want %q", i, e.Provider, want[i])
		}
	}
}

func TestDecisionLogSinceFilters(t *testing.T) {
	l := NewDecisionLog(16)
	now := time.Now()
	l.Record(DecisionEntry{At: now.Add(-2 * time.Hour), Provider: "old"})
	l.Record(DecisionEntry{At: now.Add(-10 * time.Minute), Provider: "recent"})

	got := l.Since(now.Add(-time.Hour))
	if len(got) != 1 || got[0].Provider != "recent" {
		t.Errorf("Since = %v, want only the recent entry", got)
	}
}

func TestDecisionLogZeroSizeDefaults(t *testing.T) {
	l := NewDecisionLog(0)
	l.Record(DecisionEntry{At: time.Now(), Provider: "x"})
	if got := l.Since(time.Time{}); len(got) != 1 {
		t.Errorf("Since returned %d entries, want 1", len(got))
	}
}

func TestEngineStats(t *testing.T) {
	e, _, _ := newTestEngine(t, testDescriptors(), nil)

	now := time.Now()
	record := func(age time.Duration, provider string, tier types.Tier) {
		e.log.Record(DecisionEntry{At: now.Add(-age), Provider: provider, Tier: tier})
	}
	// Outside the 24h window.
	record(30*time.Hour, "deepseek", types.TierHostedFast)
	// Inside: deepseek, deepseek, openrouter, deepseek.
	record(3*time.Hour, "deepseek", types.TierHostedFast)
	record(2*time.Hour, "deepseek", types.TierHostedFast)
	record(time.Hour, "openrouter", types.TierAggregator)
	record(time.Minute, "deepseek", types.TierHostedFast)

	s := e.Stats(24)
	if s.WindowHours != 24 {
		t.Errorf("WindowHours = %d, want 24", s.WindowHours)
	}
	if s.TotalDecisions != 4 {
		t.Errorf("TotalDecisions = %d, want 4", s.TotalDecisions)
	}
	if s.ByProvider["deepseek"] != 3 || s.ByProvider["openrouter"] != 1 {
		t.Errorf("ByProvider = %v, want deepseek:3 openrouter:1", s.ByProvider)
	}
	if s.ByTier[string(types.TierHostedFast)] != 3 {
		t.Errorf("ByTier = %v, want hosted-fast:3", s.ByTier)
	}
	// deepseek->openrouter and openrouter->deepseek are the two provider
	// switches inside the window.
	if s.ApproxFailovers != 2 {
		t.Errorf("ApproxFailovers = %d, want 2", s.ApproxFailovers)
	}
	if s.AvgHealthScore <= 0 {
		t.Errorf("AvgHealthScore = %v, want > 0", s.AvgHealthScore)
	}
}

func TestEngineStatsDefaultWindow(t *testing.T) {
	e, _, _ := newTestEngine(t, testDescriptors(), nil)

	s := e.Stats(0)
	if s.WindowHours != 24 {
		t.Errorf("WindowHours = %d, want 24 for the zero default", s.WindowHours)
	}
	if s.TotalDecisions != 0 {
		t.Errorf("TotalDecisions = %d, want 0 on an empty log", s.TotalDecisions)
	}
}
