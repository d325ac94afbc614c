package types

import "time"

// CompileRequest is the canonical representation of a context-compilation
// request. The API handler validates and enriches it before it reaches the
// compiler.
type CompileRequest struct {
	TaskID          string     `json:"task_id"`
	TaskDescription string     `json:"task_description"`
	TaskType        TaskType   `json:"task_type"`
	Complexity      Complexity `json:"complexity"`

	// Optional repository context. ReferencedFiles are paths relative to the
	// project root served by the Repository Host.
	ProjectID       string   `json:"project_id,omitempty"`
	ReferencedFiles []string `json:"referenced_files,omitempty"`

	// Optional overrides. TargetModel skips model resolution; MaxTokens caps
	// the computed budget when smaller.
	TargetModel string `json:"target_model,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty"`

	// Internal tracking
	TraceID    string    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// RouteRequest asks the routing engine for a provider/model pair.
type RouteRequest struct {
	Complexity Complexity `json:"complexity"`
	TaskType   TaskType   `json:"task_type"`

	// Optional constraints. Zero means unconstrained.
	MaxLatencyMs          int `json:"max_latency_ms,omitempty"`
	RequiredContextLength int `json:"required_context_length,omitempty"`
}

// OutcomeReport is posted by callers after dispatching a compiled prompt to
// the selected provider, so the health tracker sees real traffic results.
type OutcomeReport struct {
	Success   bool  `json:"success"`
	LatencyMs int64 `json:"latency_ms"`
}
