package config

import (
	"fmt"

	"github.com/atelierhq/loom-core/internal/types"
)

type ProvidersConfig struct {
	Providers []ProviderDescriptor `yaml:"providers"`
}

// ProviderDescriptor is the static definition of one inference backend.
// Everything here is immutable at runtime; only the enabled flag has a
// mutable counterpart in the router registry.
type ProviderDescriptor struct {
	Name             string     `yaml:"name" json:"name"`
	Tier             types.Tier `yaml:"tier" json:"tier"`
	Priority         int        `yaml:"priority" json:"priority"`
	Endpoint         string     `yaml:"endpoint" json:"endpoint"`
	ProbePath        string     `yaml:"probe_path" json:"probe_path"`
	RateLimitRPM     int        `yaml:"rate_limit_rpm" json:"rate_limit_rpm"`
	CostPer1KTokens  float64    `yaml:"cost_per_1k_tokens" json:"cost_per_1k_tokens"`
	MaxContextLength int        `yaml:"max_context_length" json:"max_context_length"`
	Models           []string   `yaml:"models" json:"models"`
	Enabled          bool       `yaml:"enabled" json:"enabled"`
}

// Validate checks descriptor invariants that would otherwise surface as
// confusing routing behavior at runtime.
func (pc *ProvidersConfig) Validate() error {
	seen := make(map[string]bool, len(pc.Providers))
	for i, p := range pc.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if _, ok := types.ParseTier(string(p.Tier)); !ok {
			return fmt.Errorf("provider %q: unknown tier %q", p.Name, p.Tier)
		}
		if p.Endpoint == "" {
			return fmt.Errorf("provider %q: endpoint is required", p.Name)
		}
		if p.Tier != types.TierSelfHosted && len(p.Models) == 0 {
			return fmt.Errorf("provider %q: at least one model is required for tier %s", p.Name, p.Tier)
		}
		if p.MaxContextLength <= 0 {
			return fmt.Errorf("provider %q: max_context_length must be positive", p.Name)
		}
	}
	return nil
}
