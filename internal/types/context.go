package types

// BlockType labels one section of a compiled prompt. Blocks always appear in
// the fixed fill order below.
type BlockType string

const (
	BlockSystem          BlockType = "system"
	BlockReferencedFiles BlockType = "referenced_files"
	BlockSimilarCode     BlockType = "similar_code"
	BlockDesignPatterns  BlockType = "design_patterns"
	BlockAntiPatterns    BlockType = "anti_patterns"
	BlockHumanFeedback   BlockType = "human_feedback"
	BlockArchitecture    BlockType = "architecture"
	BlockExamples        BlockType = "examples"
)

// ContextBlock is one labeled, token-accounted section of a compiled prompt.
type ContextBlock struct {
	Type      BlockType `json:"type"`
	Tokens    int       `json:"tokens"`
	Source    string    `json:"source"`
	Detail    string    `json:"details,omitempty"`
	Truncated bool      `json:"truncated"`
}

// CompiledContext is the result of one compile call. Immutable after return.
type CompiledContext struct {
	CompiledText        string         `json:"compiled_text"`
	ModelRecommendation string         `json:"model_recommendation"`
	AlternateModels     []string       `json:"alternate_models,omitempty"`
	TokenCount          int            `json:"token_count"`
	TokenBudget         int            `json:"token_budget"`
	Blocks              []ContextBlock `json:"context_blocks"`
	TraceID             string         `json:"trace_id"`

	// DegradedSources names fetches that failed or timed out and were
	// substituted with empty results.
	DegradedSources []string `json:"degraded_sources,omitempty"`
}

// EstimateBreakdown is the no-I/O counterpart of CompiledContext: worst-case
// per-block token ceilings under the same budget arithmetic.
type EstimateBreakdown struct {
	EstimatedTokens  int               `json:"estimated_tokens"`
	Blocks           map[BlockType]int `json:"per_block"`
	RecommendedModel string            `json:"recommended_model"`
	FitsInBudget     bool              `json:"fits_in_budget"`
	Budget           int               `json:"budget"`
}
