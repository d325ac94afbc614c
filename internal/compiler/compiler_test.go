package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/atelierhq/loom-core/internal/config"
	"github.com/atelierhq/loom-core/internal/sources"
	"github.com/atelierhq/loom-core/internal/types"
)

type fakeKnowledge struct {
	entries map[string][]sources.Entry
	err     error
}

func (f *fakeKnowledge) Search(ctx context.Context, collection, query string, topK int) ([]sources.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[collection], nil
}

type fakeRepo struct {
	files map[string]string
	tree  []string
	err   error
}

func (f *fakeRepo) File(ctx context.Context, projectID, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	content, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return content, nil
}

func (f *fakeRepo) Tree(ctx context.Context, projectID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tree, nil
}

func testSourcesCfg() config.SourcesConfig {
	return config.SourcesConfig{
		Knowledge:  config.KnowledgeConfig{TopK: 5, Timeout: time.Second},
		Repository: config.RepositoryConfig{Timeout: time.Second},
	}
}

func newTestCompiler(k KnowledgeSource, r RepoSource) *Compiler {
	return New(k, r, testSourcesCfg, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// bigGoFile generates at least n chars of function definitions.
func bigGoFile(n int) string {
	var sb strings.Builder
	sb.WriteString("package worker\n\n")
	for i := 0; sb.Len() < n; i++ {
		fmt.Fprintf(&sb, "func Handle%04d(w http.ResponseWriter, r *http.Request) {\n"+
			"\tbody := readBody(r)\n\tif err := validate(body); err != nil {\n"+
			"\t\tfail(w, err)\n\t\treturn\n\t}\n\tstore(body)\n\trespond(w, body)\n}\n\n", i)
	}
	return sb.String()
}

func TestCompileCriticalFeatureBuildExample(t *testing.T) {
	repo := &fakeRepo{
		files: map[string]string{"internal/engine/engine.go": bigGoFile(200000)},
		tree:  []string{"go.mod", "internal/engine/engine.go"},
	}
	c := newTestCompiler(&fakeKnowledge{}, repo)

	req := &types.CompileRequest{
		TaskID:          "task-001",
		TaskDescription: strings.Repeat("extend the scheduling engine with preemption support ", 140),
		TaskType:        types.TaskFeatureBuild,
		Complexity:      types.ComplexityCritical,
		ProjectID:       "proj-1",
		ReferencedFiles: []string{"internal/engine/engine.go"},
	}

	result, err := c.Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if result.TokenBudget != 114688 {
		t.Errorf("budget = %d, want 114688", result.TokenBudget)
	}
	if result.TokenCount > result.TokenBudget {
		t.Errorf("token count %d exceeds budget %d", result.TokenCount, result.TokenBudget)
	}

	var truncated bool
	for _, b := range result.Blocks {
		if b.Truncated {
			truncated = true
		}
	}
	if !truncated {
		t.Error("expected at least one truncated block for a 200k-char file")
	}

	sum := 0
	for _, b := range result.Blocks {
		sum += b.Tokens
	}
	if sum != result.TokenCount {
		t.Errorf("token count %d != sum of blocks %d", result.TokenCount, sum)
	}
	if sum > result.TokenBudget {
		t.Errorf("block token sum %d exceeds budget %d", sum, result.TokenBudget)
	}
}

func TestCompileBlockOrderFixed(t *testing.T) {
	entry := func(src string, n int) []sources.Entry {
		return []sources.Entry{{Source: src, Content: strings.Repeat("x := x + 1\n", n), Score: 0.9}}
	}
	k := &fakeKnowledge{entries: map[string][]sources.Entry{
		sources.CollectionSimilarCode:    entry("sim.go", 50),
		sources.CollectionDesignPatterns: entry("patterns.md", 40),
		sources.CollectionAntiPatterns:   entry("anti.md", 30),
		sources.CollectionHumanFeedback:  entry("review-17", 20),
		sources.CollectionArchitecture:   entry("adr-0003.md", 40),
		sources.CollectionExamples:       entry("example-2", 60),
	}}
	repo := &fakeRepo{
		files: map[string]string{"a.go": bigGoFile(4000)},
		tree:  []string{"a.go", "b.go"},
	}
	c := newTestCompiler(k, repo)

	result, err := c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-002",
		TaskDescription: "add retry logic to the fetcher",
		TaskType:        types.TaskBugFix,
		Complexity:      types.ComplexityMedium,
		ProjectID:       "proj-1",
		ReferencedFiles: []string{"a.go"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	want := []types.BlockType{
		types.BlockSystem,
		types.BlockReferencedFiles,
		types.BlockSimilarCode,
		types.BlockDesignPatterns,
		types.BlockAntiPatterns,
		types.BlockHumanFeedback,
		types.BlockArchitecture,
		types.BlockExamples,
	}
	if len(result.Blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(result.Blocks), len(want), result.Blocks)
	}
	for i, bt := range want {
		if result.Blocks[i].Type != bt {
			t.Errorf("block %d = %s, want %s", i, result.Blocks[i].Type, bt)
		}
	}

	if !strings.Contains(result.CompiledText, "## Referenced files") {
		t.Error("compiled text missing referenced files section")
	}
	if !strings.Contains(result.CompiledText, "project-tree") {
		t.Error("compiled text missing project tree entry")
	}
}

func TestCompileFractionOfRemaining(t *testing.T) {
	big := strings.Repeat("result = append(result, next)\n", 4000)
	k := &fakeKnowledge{entries: map[string][]sources.Entry{
		sources.CollectionSimilarCode:    {{Source: "s", Content: big}},
		sources.CollectionDesignPatterns: {{Source: "d", Content: big}},
		sources.CollectionAntiPatterns:   {{Source: "a", Content: big}},
		sources.CollectionHumanFeedback:  {{Source: "h", Content: big}},
		sources.CollectionArchitecture:   {{Source: "r", Content: big}},
		sources.CollectionExamples:       {{Source: "e", Content: big}},
	}}
	repo := &fakeRepo{files: map[string]string{"main.go": big}, tree: []string{"main.go"}}
	c := newTestCompiler(k, repo)

	result, err := c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-003",
		TaskDescription: "rework the ingestion pipeline",
		TaskType:        types.TaskRefactor,
		Complexity:      types.ComplexityHigh,
		ProjectID:       "proj-1",
		ReferencedFiles: []string{"main.go"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fractions := map[types.BlockType]float64{}
	for _, f := range fillOrder {
		fractions[f.block] = f.fraction
	}

	if result.Blocks[0].Type != types.BlockSystem {
		t.Fatal("first block must be the system block")
	}
	remaining := result.TokenBudget - result.Blocks[0].Tokens
	for _, b := range result.Blocks[1:] {
		limit := remaining
		if frac := fractions[b.Type]; frac > 0 {
			limit = int(float64(remaining) * frac)
		}
		if b.Tokens > limit {
			t.Errorf("block %s: %d tokens exceeds share %d of remaining %d", b.Type, b.Tokens, limit, remaining)
		}
		remaining -= b.Tokens
	}
}

func TestCompileSystemPromptTooLarge(t *testing.T) {
	c := newTestCompiler(&fakeKnowledge{}, &fakeRepo{})

	req := &types.CompileRequest{
		TaskID:          "task-004",
		TaskDescription: strings.Repeat("very long description ", 100),
		TaskType:        types.TaskReview,
		Complexity:      types.ComplexityLow,
		MaxTokens:       50,
	}
	_, err := c.Compile(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for oversized system prompt")
	}
	if !errors.Is(err, ErrSystemPromptTooLarge) {
		t.Errorf("error = %v, want ErrSystemPromptTooLarge", err)
	}
}

func TestCompileCallerCapWins(t *testing.T) {
	c := newTestCompiler(&fakeKnowledge{}, &fakeRepo{})

	result, err := c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-005",
		TaskDescription: "short task",
		TaskType:        types.TaskBugFix,
		Complexity:      types.ComplexityLow,
		MaxTokens:       2000,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.TokenBudget != 2000 {
		t.Errorf("budget = %d, want caller cap 2000", result.TokenBudget)
	}

	// A cap above the computed budget does not raise it.
	result, err = c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-006",
		TaskDescription: "short task",
		TaskType:        types.TaskBugFix,
		Complexity:      types.ComplexityLow,
		MaxTokens:       10_000_000,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if want := budgetFor(modelQwenSmall, types.TaskBugFix); result.TokenBudget != want {
		t.Errorf("budget = %d, want computed %d", result.TokenBudget, want)
	}
}

func TestCompileTargetModelOverride(t *testing.T) {
	c := newTestCompiler(&fakeKnowledge{}, &fakeRepo{})

	result, err := c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-007",
		TaskDescription: "short task",
		TaskType:        types.TaskDocumentation,
		Complexity:      types.ComplexityCritical,
		TargetModel:     modelQwenSmall,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.ModelRecommendation != modelQwenSmall {
		t.Errorf("model = %s, want explicit override %s", result.ModelRecommendation, modelQwenSmall)
	}
	if result.TokenBudget != 32768-4096 {
		t.Errorf("budget = %d, want %d", result.TokenBudget, 32768-4096)
	}
}

func TestCompileDegradesOnSourceFailures(t *testing.T) {
	k := &fakeKnowledge{err: errors.New("knowledge store down")}
	repo := &fakeRepo{err: errors.New("unknown project")}
	c := newTestCompiler(k, repo)

	result, err := c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-008",
		TaskDescription: "fix the flaky login test",
		TaskType:        types.TaskBugFix,
		Complexity:      types.ComplexityMedium,
		ProjectID:       "ghost-project",
		ReferencedFiles: []string{"auth/login.go"},
	})
	if err != nil {
		t.Fatalf("Compile should degrade, not fail: %v", err)
	}

	if len(result.Blocks) != 1 || result.Blocks[0].Type != types.BlockSystem {
		t.Errorf("expected only the system block, got %+v", result.Blocks)
	}
	if result.TokenCount > result.TokenBudget {
		t.Errorf("token count %d exceeds budget %d", result.TokenCount, result.TokenBudget)
	}
	// 6 knowledge collections + 1 file + the tree.
	if len(result.DegradedSources) != 8 {
		t.Errorf("degraded sources = %v, want 8 entries", result.DegradedSources)
	}
	for _, want := range []string{"repository:tree", "repository:auth/login.go", "knowledge:similar_code"} {
		found := false
		for _, got := range result.DegradedSources {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("degraded sources missing %q: %v", want, result.DegradedSources)
		}
	}
}

func TestCompileWithoutProjectSkipsRepo(t *testing.T) {
	repo := &fakeRepo{err: errors.New("should not be called")}
	k := &fakeKnowledge{entries: map[string][]sources.Entry{
		sources.CollectionSimilarCode: {{Source: "cache.go", Content: "func Get(k string) {}"}},
	}}
	c := newTestCompiler(k, repo)

	result, err := c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-009",
		TaskDescription: "document the cache package",
		TaskType:        types.TaskDocumentation,
		Complexity:      types.ComplexityLow,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(result.DegradedSources) != 0 {
		t.Errorf("no repo fetches should have run: %v", result.DegradedSources)
	}
	if len(result.Blocks) != 2 {
		t.Fatalf("expected system + similar_code, got %+v", result.Blocks)
	}
	if result.Blocks[1].Type != types.BlockSimilarCode {
		t.Errorf("second block = %s, want similar_code", result.Blocks[1].Type)
	}
}

func TestCompileTraceID(t *testing.T) {
	c := newTestCompiler(&fakeKnowledge{}, &fakeRepo{})

	result, err := c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-010",
		TaskDescription: "short",
		TaskType:        types.TaskReview,
		Complexity:      types.ComplexityLow,
		TraceID:         "trace-from-upstream",
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.TraceID != "trace-from-upstream" {
		t.Errorf("trace id = %q, want upstream value", result.TraceID)
	}

	result, err = c.Compile(context.Background(), &types.CompileRequest{
		TaskID:          "task-011",
		TaskDescription: "short",
		TaskType:        types.TaskReview,
		Complexity:      types.ComplexityLow,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if result.TraceID == "" {
		t.Error("trace id should be generated when absent")
	}
}

func TestEstimate(t *testing.T) {
	c := newTestCompiler(&fakeKnowledge{err: errors.New("estimate must not fetch")},
		&fakeRepo{err: errors.New("estimate must not fetch")})

	est := c.Estimate(&types.CompileRequest{
		TaskID:          "task-012",
		TaskDescription: "estimate sizing",
		TaskType:        types.TaskFeatureBuild,
		Complexity:      types.ComplexityCritical,
	})

	if est.Budget != 114688 {
		t.Errorf("budget = %d, want 114688", est.Budget)
	}
	if !est.FitsInBudget {
		t.Error("small system prompt should fit")
	}
	if est.RecommendedModel != modelDeepseekR1 {
		t.Errorf("model = %s, want %s", est.RecommendedModel, modelDeepseekR1)
	}
	if _, ok := est.Blocks[types.BlockReferencedFiles]; ok {
		t.Error("referenced_files share should be absent without a project")
	}
	if _, ok := est.Blocks[types.BlockSimilarCode]; !ok {
		t.Error("similar_code share should be present")
	}

	total := 0
	for _, v := range est.Blocks {
		total += v
	}
	if total != est.EstimatedTokens {
		t.Errorf("estimated tokens %d != block sum %d", est.EstimatedTokens, total)
	}
	if est.EstimatedTokens > est.Budget {
		t.Errorf("estimate %d exceeds budget %d", est.EstimatedTokens, est.Budget)
	}
}

func TestEstimateWithReferencedFiles(t *testing.T) {
	c := newTestCompiler(&fakeKnowledge{}, &fakeRepo{})

	est := c.Estimate(&types.CompileRequest{
		TaskID:          "task-013",
		TaskDescription: "estimate sizing",
		TaskType:        types.TaskBugFix,
		Complexity:      types.ComplexityMedium,
		ProjectID:       "proj-1",
		ReferencedFiles: []string{"a.go", "b.go"},
	})
	if _, ok := est.Blocks[types.BlockReferencedFiles]; !ok {
		t.Error("referenced_files share should be present with a project")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty string = %d tokens", got)
	}
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("8 chars = %d tokens, want 2", got)
	}
	if got := EstimateTokens(strings.Repeat("a", 4096)); got != 1024 {
		t.Errorf("4096 chars = %d tokens, want 1024", got)
	}
}
