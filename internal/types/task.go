package types

// TaskType names the kind of coding work a request is about.
type TaskType string

const (
	TaskFeatureBuild  TaskType = "feature-build"
	TaskBugFix        TaskType = "bug-fix"
	TaskRefactor      TaskType = "refactor"
	TaskTestGen       TaskType = "test-gen"
	TaskReview        TaskType = "review"
	TaskDocumentation TaskType = "documentation"
)

// AllTaskTypes returns every task type in a stable order.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskFeatureBuild,
		TaskBugFix,
		TaskRefactor,
		TaskTestGen,
		TaskReview,
		TaskDocumentation,
	}
}

func ParseTaskType(s string) (TaskType, bool) {
	switch TaskType(s) {
	case TaskFeatureBuild, TaskBugFix, TaskRefactor, TaskTestGen, TaskReview, TaskDocumentation:
		return TaskType(s), true
	default:
		return "", false
	}
}

// Complexity grades how demanding a task is expected to be.
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityCritical Complexity = "critical"
)

// Level returns a numeric rank for comparison. Higher means more demanding.
func (c Complexity) Level() int {
	switch c {
	case ComplexityLow:
		return 0
	case ComplexityMedium:
		return 1
	case ComplexityHigh:
		return 2
	case ComplexityCritical:
		return 3
	default:
		return -1
	}
}

func ParseComplexity(s string) (Complexity, bool) {
	switch Complexity(s) {
	case ComplexityLow, ComplexityMedium, ComplexityHigh, ComplexityCritical:
		return Complexity(s), true
	default:
		return "", false
	}
}
