package compiler

import (
	"github.com/atelierhq/loom-core/internal/types"
)

// ModelInfo describes one model the compiler can recommend.
type ModelInfo struct {
	Name          string `json:"name"`
	ContextWindow int    `json:"context_window"`
	SelfHosted    bool   `json:"self_hosted"`
}

// Model names used by the recommendation table. Self-hosted names match
// what the local model host reports; hosted names use the aggregator's
// vendor-prefixed form.
const (
	modelQwenSmall    = "qwen2.5-coder:7b"
	modelQwenLarge    = "qwen2.5-coder:32b"
	modelDeepseekChat = "deepseek/deepseek-chat"
	modelDeepseekR1   = "deepseek/deepseek-r1"
	modelClaudeSonnet = "anthropic/claude-3.7-sonnet"
	modelGPT4o        = "openai/gpt-4o"
	modelLlama70B     = "meta-llama/llama-3.1-70b-instruct"
)

// defaultContextWindow is assumed for models absent from the catalog, so an
// explicit target_model for a model we have never heard of still compiles
// against a conservative budget.
const defaultContextWindow = 32768

var catalog = []ModelInfo{
	{Name: modelQwenSmall, ContextWindow: 32768, SelfHosted: true},
	{Name: modelQwenLarge, ContextWindow: 32768, SelfHosted: true},
	{Name: modelDeepseekChat, ContextWindow: 65536},
	{Name: modelDeepseekR1, ContextWindow: 131072},
	{Name: modelClaudeSonnet, ContextWindow: 200000},
	{Name: modelGPT4o, ContextWindow: 128000},
	{Name: modelLlama70B, ContextWindow: 131072},
}

// ModelCatalog returns every model the recommendation table can produce.
func ModelCatalog() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ContextWindow reports a model's context window, falling back to the
// conservative default for models missing from the catalog.
func ContextWindow(model string) int {
	for _, m := range catalog {
		if m.Name == model {
			return m.ContextWindow
		}
	}
	return defaultContextWindow
}

// resolveModel maps (complexity, task type) to a recommended model plus the
// alternates reported alongside it. The table is closed: every enum value is
// matched, and unknown inputs take the default branch.
func resolveModel(c types.Complexity, t types.TaskType) (string, []string) {
	switch c {
	case types.ComplexityLow:
		return modelQwenSmall, []string{modelQwenLarge}

	case types.ComplexityMedium:
		switch t {
		case types.TaskReview, types.TaskDocumentation:
			return modelQwenLarge, []string{modelQwenSmall}
		default:
			return modelQwenLarge, []string{modelDeepseekChat}
		}

	case types.ComplexityHigh:
		switch t {
		case types.TaskReview, types.TaskDocumentation:
			return modelDeepseekChat, []string{modelQwenLarge}
		default:
			return modelClaudeSonnet, []string{modelDeepseekChat, modelGPT4o}
		}

	case types.ComplexityCritical:
		return modelDeepseekR1, []string{modelClaudeSonnet, modelGPT4o}

	default:
		return modelQwenLarge, nil
	}
}
