package compiler

import (
	"testing"

	"github.com/atelierhq/loom-core/internal/types"
)

func TestBudgetCriticalFeatureBuild(t *testing.T) {
	model, _ := resolveModel(types.ComplexityCritical, types.TaskFeatureBuild)
	if ContextWindow(model) != 131072 {
		t.Fatalf("context window for %s = %d, want 131072", model, ContextWindow(model))
	}
	if got := budgetFor(model, types.TaskFeatureBuild); got != 114688 {
		t.Errorf("budget = %d, want 114688 (131072 - 16384)", got)
	}
}

func TestBudgetForAllTaskTypes(t *testing.T) {
	budgets := BudgetFor(modelDeepseekR1)
	if len(budgets) != len(types.AllTaskTypes()) {
		t.Fatalf("got %d entries, want %d", len(budgets), len(types.AllTaskTypes()))
	}
	if budgets[types.TaskFeatureBuild] != 114688 {
		t.Errorf("feature-build budget = %d, want 114688", budgets[types.TaskFeatureBuild])
	}
	if budgets[types.TaskReview] != 126976 {
		t.Errorf("review budget = %d, want 126976", budgets[types.TaskReview])
	}
}

func TestBudgetUnknownModel(t *testing.T) {
	budgets := BudgetFor("mystery-model-x")
	if budgets[types.TaskReview] != defaultContextWindow-4096 {
		t.Errorf("unknown model review budget = %d, want %d",
			budgets[types.TaskReview], defaultContextWindow-4096)
	}
}

func TestReservedOutputGenerativeLarger(t *testing.T) {
	if reservedOutput(types.TaskFeatureBuild) <= reservedOutput(types.TaskReview) {
		t.Error("generative tasks should reserve more output than review tasks")
	}
	if reservedOutput(types.TaskTestGen) <= reservedOutput(types.TaskDocumentation) {
		t.Error("test-gen should reserve more output than documentation")
	}
}

func TestResolveModelCoversAllInputs(t *testing.T) {
	for _, c := range []types.Complexity{
		types.ComplexityLow, types.ComplexityMedium, types.ComplexityHigh, types.ComplexityCritical,
	} {
		for _, tt := range types.AllTaskTypes() {
			primary, alternates := resolveModel(c, tt)
			if primary == "" {
				t.Errorf("resolveModel(%s, %s) returned empty primary", c, tt)
			}
			for _, alt := range alternates {
				if alt == primary {
					t.Errorf("resolveModel(%s, %s): alternate duplicates primary %s", c, tt, primary)
				}
			}
		}
	}

	// Unknown complexity takes the default branch.
	primary, _ := resolveModel(types.Complexity("bogus"), types.TaskBugFix)
	if primary == "" {
		t.Error("default branch returned empty primary")
	}
}

func TestResolveModelScalesWithComplexity(t *testing.T) {
	low, _ := resolveModel(types.ComplexityLow, types.TaskFeatureBuild)
	critical, _ := resolveModel(types.ComplexityCritical, types.TaskFeatureBuild)
	if ContextWindow(critical) <= ContextWindow(low) {
		t.Errorf("critical model window (%d) should exceed low model window (%d)",
			ContextWindow(critical), ContextWindow(low))
	}
}

func TestModelCatalogIsACopy(t *testing.T) {
	first := ModelCatalog()
	first[0].Name = "mutated"
	second := ModelCatalog()
	if second[0].Name == "mutated" {
		t.Error("ModelCatalog should return a copy")
	}
}
