package router

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/atelierhq/loom-core/internal/config"
	"github.com/atelierhq/loom-core/internal/router/policy"
	"github.com/atelierhq/loom-core/internal/telemetry"
	"github.com/atelierhq/loom-core/internal/types"
)

// ErrNoHealthyProvider means the candidate set was empty after filtering.
// Routing never degrades to a best-effort or partial decision.
var ErrNoHealthyProvider = errors.New("no healthy provider available")

// tierLatencyMs is the per-tier latency estimate used for the max-latency
// filter and for decision reporting.
func tierLatencyMs(t types.Tier) int {
	switch t {
	case types.TierSelfHosted:
		return 500
	case types.TierHostedFast:
		return 1200
	case types.TierAggregator:
		return 2500
	case types.TierCommunity:
		return 5000
	default:
		return 10000
	}
}

// preferredLocalModels orders self-hosted models by preference per
// complexity. Routing intersects this with the currently loaded set.
func preferredLocalModels(c types.Complexity) []string {
	switch c {
	case types.ComplexityLow:
		return []string{"qwen2.5-coder:7b", "qwen2.5-coder:32b"}
	case types.ComplexityMedium:
		return []string{"qwen2.5-coder:32b", "qwen2.5-coder:7b"}
	default:
		return []string{"qwen2.5-coder:32b"}
	}
}

// Engine picks a primary provider/model pair plus a fallback chain.
type Engine struct {
	registry  *Registry
	tracker   *HealthTracker
	modelHost ModelHost
	gate      *policy.Gate
	log       *DecisionLog
	cfg       func() config.RoutingConfig
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// NewEngine creates a routing engine. gate may be nil (no policy gating) and
// metrics may be nil.
func NewEngine(registry *Registry, tracker *HealthTracker, modelHost ModelHost, gate *policy.Gate, cfg func() config.RoutingConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:  registry,
		tracker:   tracker,
		modelHost: modelHost,
		gate:      gate,
		log:       NewDecisionLog(cfg().DecisionLogSize),
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

type candidate struct {
	desc  config.ProviderDescriptor
	model string
	score float64
}

// Route selects a provider/model for the request or fails with
// ErrNoHealthyProvider. The fallback chain never contains the primary nor a
// duplicate provider.
func (e *Engine) Route(ctx context.Context, req *types.RouteRequest) (*types.RouteDecision, error) {
	threshold := e.cfg().UnhealthyThreshold

	// The loaded-model list is fetched at most once per route call, and only
	// when a self-hosted candidate survives the health filters.
	var loaded []string
	loadedFetched := false

	var candidates []candidate
	for _, desc := range e.registry.List() {
		if !desc.Enabled {
			continue
		}
		available, score := e.tracker.status(desc.Name)
		if !available || score < threshold {
			continue
		}
		if req.MaxLatencyMs > 0 && tierLatencyMs(desc.Tier) > req.MaxLatencyMs {
			continue
		}
		if req.RequiredContextLength > 0 && desc.MaxContextLength < req.RequiredContextLength {
			continue
		}

		var model string
		if desc.Tier == types.TierSelfHosted {
			if !loadedFetched {
				loadedFetched = true
				if e.modelHost != nil {
					models, err := e.modelHost.LoadedModels(ctx)
					if err != nil {
						e.logger.Warn("model availability lookup failed", "error", err)
					}
					loaded = models
				}
			}
			model = resolveLocalModel(req.Complexity, loaded)
			if model == "" {
				continue
			}
		} else {
			if len(desc.Models) == 0 {
				continue
			}
			model = desc.Models[0]
		}

		if e.gate != nil && e.gate.Active() {
			allowed, reason, err := e.gate.Evaluate(ctx, policy.Input{
				TaskType:   string(req.TaskType),
				Complexity: string(req.Complexity),
				Provider:   desc.Name,
				Tier:       string(desc.Tier),
				Model:      model,
			})
			if err != nil {
				// Fail open: a broken policy must not take routing down.
				e.logger.Warn("routing policy evaluation failed, admitting candidate",
					"provider", desc.Name, "error", err)
			} else if !allowed {
				e.logger.Info("routing policy denied candidate",
					"provider", desc.Name, "reason", reason)
				continue
			}
		}

		candidates = append(candidates, candidate{desc: desc, model: model, score: score})
	}

	if len(candidates) == 0 {
		if e.metrics != nil {
			e.metrics.RecordRoute("none", "none", "no_provider")
		}
		return nil, ErrNoHealthyProvider
	}

	// Tier is the primary key; health only breaks ties within a tier.
	// Priority and name make the order deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.desc.Tier.Order() != b.desc.Tier.Order() {
			return a.desc.Tier.Order() < b.desc.Tier.Order()
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if a.desc.Priority != b.desc.Priority {
			return a.desc.Priority < b.desc.Priority
		}
		return a.desc.Name < b.desc.Name
	})

	primary := candidates[0]
	maxFallbacks := e.cfg().MaxFallbacks
	if maxFallbacks <= 0 {
		maxFallbacks = 3
	}

	fallbacks := make([]types.FallbackEntry, 0, maxFallbacks)
	seen := map[string]bool{primary.desc.Name: true}
	for _, c := range candidates[1:] {
		if len(fallbacks) >= maxFallbacks {
			break
		}
		if seen[c.desc.Name] {
			continue
		}
		seen[c.desc.Name] = true
		fallbacks = append(fallbacks, types.FallbackEntry{
			Provider:           c.desc.Name,
			Model:              c.model,
			Tier:               c.desc.Tier,
			EstimatedLatencyMs: tierLatencyMs(c.desc.Tier),
			EstimatedCostPer1K: c.desc.CostPer1KTokens,
		})
	}

	decision := &types.RouteDecision{
		Provider:           primary.desc.Name,
		Model:              primary.model,
		Tier:               primary.desc.Tier,
		EstimatedLatencyMs: tierLatencyMs(primary.desc.Tier),
		EstimatedCostPer1K: primary.desc.CostPer1KTokens,
		FallbackChain:      fallbacks,
	}

	e.log.Record(DecisionEntry{
		At:       time.Now(),
		Provider: decision.Provider,
		Model:    decision.Model,
		Tier:     decision.Tier,
	})
	if e.metrics != nil {
		e.metrics.RecordRoute(decision.Provider, string(decision.Tier), "ok")
	}
	e.logger.Info("route selected",
		"provider", decision.Provider,
		"model", decision.Model,
		"tier", decision.Tier,
		"score", primary.score,
		"fallbacks", len(fallbacks),
		"task_type", req.TaskType,
		"complexity", req.Complexity,
	)
	return decision, nil
}

// resolveLocalModel intersects the preference list with what the model host
// reports loaded: first preferred match, else any loaded model, else none.
func resolveLocalModel(c types.Complexity, loaded []string) string {
	if len(loaded) == 0 {
		return ""
	}
	for _, preferred := range preferredLocalModels(c) {
		for _, l := range loaded {
			if l == preferred {
				return preferred
			}
		}
	}
	return loaded[0]
}

// SetEnabled flips a provider's enabled flag and immediately aligns its
// availability so the change is visible to the very next route call and in
// health snapshots.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	if err := e.registry.SetEnabled(name, enabled); err != nil {
		return err
	}
	if enabled {
		e.tracker.RestoreAvailability(name)
	} else {
		e.tracker.ForceUnavailable(name)
	}
	e.logger.Info("provider admin state changed", "provider", name, "enabled", enabled)
	return nil
}

// RecordOutcome forwards a caller-reported request outcome to the tracker.
func (e *Engine) RecordOutcome(name string, success bool, latencyMs int64) error {
	return e.tracker.RecordOutcome(name, success, latencyMs)
}

// Snapshot returns one provider's health state.
func (e *Engine) Snapshot(name string) (HealthSnapshot, error) {
	return e.tracker.Snapshot(name)
}

// Snapshots returns every provider's health state.
func (e *Engine) Snapshots() []HealthSnapshot {
	return e.tracker.Snapshots()
}
