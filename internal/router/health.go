package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/atelierhq/loom-core/internal/telemetry"
	"github.com/atelierhq/loom-core/internal/types"
)

// Score weights and ceilings. A provider with zero recorded requests gets
// optimistic success/latency components so new providers are routable.
const (
	weightSuccess      = 0.4
	weightLatency      = 0.3
	weightAvailability = 0.2
	weightCost         = 0.1

	latencyCeilingMs = 10000.0
	costCeilingPer1K = 0.01
)

// healthRecord is the mutable per-provider health state. Created at registry
// load, updated on every outcome report and probe, never destroyed while the
// provider is registered.
type healthRecord struct {
	totalRequests  int64
	failedRequests int64
	latencySumMs   int64
	latencySamples int64
	lastSuccess    time.Time
	lastFailure    time.Time
	available      bool
	score          float64
	costPer1K      float64
}

func (r *healthRecord) computeScore() float64 {
	successRate := 1.0
	if r.totalRequests > 0 {
		successRate = float64(r.totalRequests-r.failedRequests) / float64(r.totalRequests)
	}

	latencyScore := 1.0
	if r.latencySamples > 0 {
		avg := float64(r.latencySumMs) / float64(r.latencySamples)
		latencyScore = 1.0 - avg/latencyCeilingMs
		if latencyScore < 0 {
			latencyScore = 0
		}
	}

	availability := 0.0
	if r.available {
		availability = 1.0
	}

	costScore := 1.0 - r.costPer1K/costCeilingPer1K
	if costScore < 0 {
		costScore = 0
	}

	return weightSuccess*successRate +
		weightLatency*latencyScore +
		weightAvailability*availability +
		weightCost*costScore
}

// HealthSnapshot is a read-only copy of one provider's health state.
type HealthSnapshot struct {
	Provider       string     `json:"provider"`
	Tier           types.Tier `json:"tier"`
	Enabled        bool       `json:"enabled"`
	Available      bool       `json:"available"`
	Score          float64    `json:"score"`
	TotalRequests  int64      `json:"total_requests"`
	FailedRequests int64      `json:"failed_requests"`
	AvgLatencyMs   float64    `json:"avg_latency_ms"`
	LastSuccess    *time.Time `json:"last_success,omitempty"`
	LastFailure    *time.Time `json:"last_failure,omitempty"`
}

// HealthTracker owns the health-record map behind one mutex. Request
// handlers and the probe loop share it through these accessors; every update
// is O(1) under the lock.
type HealthTracker struct {
	mu       sync.Mutex
	records  map[string]*healthRecord
	registry *Registry
	metrics  *telemetry.Metrics
}

// NewHealthTracker creates records for every registered provider.
func NewHealthTracker(registry *Registry, metrics *telemetry.Metrics) *HealthTracker {
	t := &HealthTracker{
		records:  make(map[string]*healthRecord),
		registry: registry,
		metrics:  metrics,
	}
	t.EnsureRecords()
	return t
}

// EnsureRecords creates records for providers missing one and refreshes the
// cost input on existing records. Called at load and after config reloads.
func (t *HealthTracker) EnsureRecords() {
	descs := t.registry.List()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range descs {
		if rec, ok := t.records[d.Name]; ok {
			rec.costPer1K = d.CostPer1KTokens
			rec.score = rec.computeScore()
			continue
		}
		rec := &healthRecord{available: true, costPer1K: d.CostPer1KTokens}
		rec.score = rec.computeScore()
		t.records[d.Name] = rec
	}
}

// RecordOutcome folds one request outcome into the provider's record and
// recomputes its score.
func (t *HealthTracker) RecordOutcome(name string, success bool, latencyMs int64) error {
	t.mu.Lock()
	rec, ok := t.records[name]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	rec.totalRequests++
	now := time.Now()
	if success {
		rec.lastSuccess = now
	} else {
		rec.failedRequests++
		rec.lastFailure = now
	}
	if latencyMs > 0 {
		rec.latencySumMs += latencyMs
		rec.latencySamples++
	}
	rec.score = rec.computeScore()
	score, available := rec.score, rec.available
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordOutcome(name, success)
		t.metrics.SetProviderHealth(name, score, available)
	}
	return nil
}

// ApplyProbe folds one liveness result into the record. When the recomputed
// score falls below threshold the provider is forced unavailable regardless
// of the raw liveness result, so an "up" but unreliable provider stays out
// of the candidate set.
func (t *HealthTracker) ApplyProbe(name string, alive bool, threshold float64) (bool, float64, error) {
	t.mu.Lock()
	rec, ok := t.records[name]
	if !ok {
		t.mu.Unlock()
		return false, 0, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	rec.available = alive
	rec.score = rec.computeScore()
	if rec.score < threshold && rec.available {
		rec.available = false
		rec.score = rec.computeScore()
	}
	available, score := rec.available, rec.score
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetProviderHealth(name, score, available)
	}
	return available, score, nil
}

// ForceUnavailable marks a provider unavailable immediately (disabled
// providers, admin disable).
func (t *HealthTracker) ForceUnavailable(name string) {
	t.setAvailability(name, false)
}

// RestoreAvailability optimistically marks a provider available again (admin
// enable); the next probe corrects it if the backend is actually down.
func (t *HealthTracker) RestoreAvailability(name string) {
	t.setAvailability(name, true)
}

func (t *HealthTracker) setAvailability(name string, available bool) {
	t.mu.Lock()
	rec, ok := t.records[name]
	if !ok {
		t.mu.Unlock()
		return
	}
	rec.available = available
	rec.score = rec.computeScore()
	score := rec.score
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetProviderHealth(name, score, available)
	}
}

// status returns the pair the routing engine filters on.
func (t *HealthTracker) status(name string) (bool, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[name]; ok {
		return rec.available, rec.score
	}
	return false, 0
}

// Snapshot returns one provider's health state.
func (t *HealthTracker) Snapshot(name string) (HealthSnapshot, error) {
	desc, enabled, ok := t.registry.Get(name)
	if !ok {
		return HealthSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[name]
	if !ok {
		return HealthSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return snapshotLocked(name, desc.Tier, enabled, rec), nil
}

// Snapshots returns the health state of every registered provider, sorted
// by name.
func (t *HealthTracker) Snapshots() []HealthSnapshot {
	descs := t.registry.List()

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]HealthSnapshot, 0, len(descs))
	for _, d := range descs {
		rec, ok := t.records[d.Name]
		if !ok {
			continue
		}
		out = append(out, snapshotLocked(d.Name, d.Tier, d.Enabled, rec))
	}
	return out
}

// AvgScore returns the mean score across registered providers.
func (t *HealthTracker) AvgScore() float64 {
	descs := t.registry.List()
	if len(descs) == 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	sum, n := 0.0, 0
	for _, d := range descs {
		if rec, ok := t.records[d.Name]; ok {
			sum += rec.score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func snapshotLocked(name string, tier types.Tier, enabled bool, rec *healthRecord) HealthSnapshot {
	s := HealthSnapshot{
		Provider:       name,
		Tier:           tier,
		Enabled:        enabled,
		Available:      rec.available,
		Score:          rec.score,
		TotalRequests:  rec.totalRequests,
		FailedRequests: rec.failedRequests,
	}
	if rec.latencySamples > 0 {
		s.AvgLatencyMs = float64(rec.latencySumMs) / float64(rec.latencySamples)
	}
	if !rec.lastSuccess.IsZero() {
		ts := rec.lastSuccess
		s.LastSuccess = &ts
	}
	if !rec.lastFailure.IsZero() {
		ts := rec.lastFailure
		s.LastFailure = &ts
	}
	return s
}
