package compiler

import (
	"github.com/atelierhq/loom-core/internal/types"
)

// reservedOutput is the fixed number of tokens held back from the context
// window for the model's own output. Generative task types reserve more room
// than review-style ones.
func reservedOutput(t types.TaskType) int {
	switch t {
	case types.TaskFeatureBuild:
		return 16384
	case types.TaskTestGen:
		return 16384
	case types.TaskBugFix:
		return 8192
	case types.TaskRefactor:
		return 8192
	case types.TaskReview:
		return 4096
	case types.TaskDocumentation:
		return 4096
	default:
		return 8192
	}
}

// budgetFor computes the input token budget for one model/task-type pair.
func budgetFor(model string, t types.TaskType) int {
	b := ContextWindow(model) - reservedOutput(t)
	if b < 0 {
		return 0
	}
	return b
}

// BudgetFor returns the available input budget per task type for the given
// model. Pure lookup, no I/O.
func BudgetFor(model string) map[types.TaskType]int {
	out := make(map[types.TaskType]int, len(types.AllTaskTypes()))
	for _, t := range types.AllTaskTypes() {
		out[t] = budgetFor(model, t)
	}
	return out
}
