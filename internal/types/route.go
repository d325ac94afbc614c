package types

// FallbackEntry is one alternate provider/model pair to try if the primary
// selection fails at call time.
type FallbackEntry struct {
	Provider           string  `json:"provider"`
	Model              string  `json:"model"`
	Tier               Tier    `json:"tier"`
	EstimatedLatencyMs int     `json:"estimated_latency_ms"`
	EstimatedCostPer1K float64 `json:"estimated_cost_per_1k"`
}

// RouteDecision is the routing engine's answer: a primary provider/model plus
// an ordered fallback chain that never repeats a provider.
type RouteDecision struct {
	Provider           string          `json:"provider"`
	Model              string          `json:"model"`
	Tier               Tier            `json:"tier"`
	EstimatedLatencyMs int             `json:"estimated_latency_ms"`
	EstimatedCostPer1K float64         `json:"estimated_cost_per_1k"`
	FallbackChain      []FallbackEntry `json:"fallback_chain"`
}
