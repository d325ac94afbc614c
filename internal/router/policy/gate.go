// Package policy provides an optional Rego-based admission gate for routing
// candidates. With no bundle configured the gate is inactive and routing
// behaves as if the package did not exist.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/atelierhq/loom-core/internal/config"
)

// Input is the data sent to OPA for each routing candidate.
type Input struct {
	TaskType   string `json:"task_type"`
	Complexity string `json:"complexity"`
	Provider   string `json:"provider"`
	Tier       string `json:"tier"`
	Model      string `json:"model"`
}

// Gate evaluates routing candidates against `data.loom.routing`.
type Gate struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
	logger   *slog.Logger
}

// NewGate creates a gate. Call Load() to compile the configured bundle.
func NewGate(cfg func() config.PolicyConfig, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{cfg: cfg, logger: logger}
}

// Active reports whether the gate has compiled policies and is enabled.
// An inactive gate admits every candidate.
func (g *Gate) Active() bool {
	if !g.cfg().Enabled {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.prepared != nil
}

// Load compiles Rego modules from the configured bundle path. A missing or
// empty bundle leaves the gate inactive rather than failing startup.
func (g *Gate) Load() error {
	cfg := g.cfg()
	if !cfg.Enabled {
		return nil
	}

	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		g.logger.Warn("no rego files found, routing policy gate inactive", "path", cfg.BundlePath)
		return nil
	}
	return g.LoadFromModules(modules)
}

// LoadFromModules compiles policies from in-memory module sources.
func (g *Gate) LoadFromModules(modules map[string]string) error {
	r := rego.New(
		rego.Query("[data.loom.routing.allow, data.loom.routing.reason]"),
		func() func(*rego.Rego) {
			mods := make([]func(*rego.Rego), 0, len(modules))
			for name, src := range modules {
				mods = append(mods, rego.Module(name, src))
			}
			return func(r *rego.Rego) {
				for _, m := range mods {
					m(r)
				}
			}
		}(),
	)

	prepared, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	g.mu.Lock()
	g.prepared = &prepared
	g.mu.Unlock()

	g.logger.Info("routing policies loaded", "modules", len(modules))
	return nil
}

// Evaluate runs the policy against one candidate. Returns whether the
// candidate is admitted plus the policy's reason when denied.
func (g *Gate) Evaluate(ctx context.Context, input Input) (bool, string, error) {
	g.mu.RLock()
	prepared := g.prepared
	g.mu.RUnlock()

	if prepared == nil {
		return true, "", nil
	}

	timeout := g.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, "", fmt.Errorf("policy evaluation: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	// Result is [allow, reason]
	arr, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(arr) < 2 {
		return false, "unexpected policy result format", nil
	}
	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return allowed, reason, nil
}
