// Package sources provides clients for the external context sources the
// compiler pulls from: the Knowledge Store (top-K lookups over categorized
// collections) and the Repository Host (file and tree lookups).
//
// Neither client retries. A failed or timed-out fetch is surfaced as an
// error and the compiler degrades that block to empty.
package sources

// Entry is a single result returned from a knowledge lookup.
type Entry struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Knowledge collection names queried during compilation. These mirror the
// context block types they feed.
const (
	CollectionSimilarCode    = "similar_code"
	CollectionDesignPatterns = "design_patterns"
	CollectionAntiPatterns   = "anti_patterns"
	CollectionHumanFeedback  = "human_feedback"
	CollectionArchitecture   = "architecture"
	CollectionExamples       = "examples"
)
