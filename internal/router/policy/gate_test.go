package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atelierhq/loom-core/internal/config"
)

func testCfg(enabled bool) func() config.PolicyConfig {
	return func() config.PolicyConfig {
		return config.PolicyConfig{
			Enabled:           enabled,
			EvaluationTimeout: 100 * time.Millisecond,
		}
	}
}

const tierPolicy = `
package loom.routing

import rego.v1

default allow := true
default reason := ""

deny contains msg if {
	input.complexity == "critical"
	input.tier == "community"
	msg := "critical tasks may not route to community providers"
}

allow := false if {
	count(deny) > 0
}

reason := concat("; ", deny) if {
	count(deny) > 0
}
`

func loadTestGate(t *testing.T, policy string) *Gate {
	t.Helper()
	g := NewGate(testCfg(true), nil)
	if err := g.LoadFromModules(map[string]string{"test.rego": policy}); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	return g
}

func TestGateAllowsByDefault(t *testing.T) {
	g := loadTestGate(t, tierPolicy)

	allowed, reason, err := g.Evaluate(context.Background(), Input{
		TaskType:   "bug-fix",
		Complexity: "medium",
		Provider:   "openrouter",
		Tier:       "aggregator",
		Model:      "deepseek/deepseek-chat",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !allowed {
		t.Errorf("expected allow, denied with reason %q", reason)
	}
}

func TestGateDeniesCriticalOnCommunity(t *testing.T) {
	g := loadTestGate(t, tierPolicy)

	allowed, reason, err := g.Evaluate(context.Background(), Input{
		TaskType:   "feature-build",
		Complexity: "critical",
		Provider:   "community-pool",
		Tier:       "community",
		Model:      "meta-llama/llama-3.1-70b-instruct",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if allowed {
		t.Error("expected deny for critical on community tier")
	}
	if reason == "" {
		t.Error("expected a deny reason")
	}
}

func TestGateInactiveWithoutPolicies(t *testing.T) {
	g := NewGate(testCfg(true), nil)
	if g.Active() {
		t.Error("gate with no policies should be inactive")
	}

	allowed, _, err := g.Evaluate(context.Background(), Input{Provider: "any"})
	if err != nil || !allowed {
		t.Errorf("inactive gate should admit everything: allowed=%v err=%v", allowed, err)
	}
}

func TestGateDisabledByConfig(t *testing.T) {
	g := NewGate(testCfg(false), nil)
	if err := g.LoadFromModules(map[string]string{"test.rego": tierPolicy}); err != nil {
		t.Fatalf("LoadFromModules: %v", err)
	}
	if g.Active() {
		t.Error("disabled gate should report inactive even with policies loaded")
	}
}

func TestLoadRegoFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "routing.rego"), []byte(tierPolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	modules, err := LoadRegoFiles(dir)
	if err != nil {
		t.Fatalf("LoadRegoFiles: %v", err)
	}
	if len(modules) != 1 {
		t.Errorf("got %d modules, want 1", len(modules))
	}
	if _, ok := modules["routing.rego"]; !ok {
		t.Error("routing.rego not loaded")
	}
}

func TestLoadRegoFilesMissingDir(t *testing.T) {
	modules, err := LoadRegoFiles("/nonexistent/policies")
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(modules) != 0 {
		t.Errorf("got %d modules, want 0", len(modules))
	}
}
