package compiler

// EstimateTokens approximates the token count of a string as its byte
// length divided by four. A real tokenizer would be more accurate but costs
// a model-specific dependency and measurable latency per compile; the
// budget math only needs a consistent, cheap measure.
func EstimateTokens(s string) int {
	return len(s) / 4
}
