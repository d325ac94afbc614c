// Package compiler assembles priority-ordered, token-budgeted prompts from
// the Repository Host and the Knowledge Store.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/loom-core/internal/config"
	"github.com/atelierhq/loom-core/internal/sources"
	"github.com/atelierhq/loom-core/internal/telemetry"
	"github.com/atelierhq/loom-core/internal/types"
)

// ErrSystemPromptTooLarge means the mandatory system block alone exceeds the
// computed token budget. This is a deployment configuration error: the
// system block is never truncated.
var ErrSystemPromptTooLarge = errors.New("system prompt exceeds token budget")

// KnowledgeSource is the Knowledge Store surface the compiler consumes.
type KnowledgeSource interface {
	Search(ctx context.Context, collection, query string, topK int) ([]sources.Entry, error)
}

// RepoSource is the Repository Host surface the compiler consumes.
type RepoSource interface {
	File(ctx context.Context, projectID, path string) (string, error)
	Tree(ctx context.Context, projectID string) ([]string, error)
}

// Compiler builds compiled contexts. Safe for concurrent use; each call is
// independent.
type Compiler struct {
	knowledge KnowledgeSource
	repo      RepoSource
	cfg       func() config.SourcesConfig
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// New creates a Compiler. metrics may be nil (metrics are skipped).
func New(knowledge KnowledgeSource, repo RepoSource, cfg func() config.SourcesConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		knowledge: knowledge,
		repo:      repo,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// fillOrder fixes both the order blocks appear in and the fraction of the
// budget REMAINING each receives when it is filled. Earlier under-fills flow
// downward; examples absorb whatever is left (fraction 0 = remainder).
var fillOrder = []struct {
	block    types.BlockType
	fraction float64
}{
	{types.BlockReferencedFiles, 0.30},
	{types.BlockSimilarCode, 0.25},
	{types.BlockDesignPatterns, 0.15},
	{types.BlockAntiPatterns, 0.05},
	{types.BlockHumanFeedback, 0.10},
	{types.BlockArchitecture, 0.10},
	{types.BlockExamples, 0},
}

// blockCollections maps knowledge-fed block types to Knowledge Store
// collection names.
var blockCollections = []struct {
	block      types.BlockType
	collection string
}{
	{types.BlockSimilarCode, sources.CollectionSimilarCode},
	{types.BlockDesignPatterns, sources.CollectionDesignPatterns},
	{types.BlockAntiPatterns, sources.CollectionAntiPatterns},
	{types.BlockHumanFeedback, sources.CollectionHumanFeedback},
	{types.BlockArchitecture, sources.CollectionArchitecture},
	{types.BlockExamples, sources.CollectionExamples},
}

// Compile assembles a budget-constrained prompt for the request. External
// fetches run concurrently with one attempt each; a failed fetch degrades
// that block to empty and is reported in DegradedSources.
func (c *Compiler) Compile(ctx context.Context, req *types.CompileRequest) (*types.CompiledContext, error) {
	start := time.Now()

	model := req.TargetModel
	var alternates []string
	if model == "" {
		model, alternates = resolveModel(req.Complexity, req.TaskType)
	}

	budget := budgetFor(model, req.TaskType)
	if req.MaxTokens > 0 && req.MaxTokens < budget {
		budget = req.MaxTokens
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	system := renderSystemPrompt(req)
	sysTokens := EstimateTokens(system)
	if sysTokens > budget {
		c.recordCompile(req, "config_error", model, 0, start)
		return nil, fmt.Errorf("%w: system block is %d tokens, budget is %d (model %s)",
			ErrSystemPromptTooLarge, sysTokens, budget, model)
	}

	fetched := c.fetchAll(ctx, req)

	blocks := []types.ContextBlock{{
		Type:   types.BlockSystem,
		Tokens: sysTokens,
		Source: "compiler",
		Detail: "task header + core rules",
	}}
	parts := []string{system}
	remaining := budget - sysTokens

	for _, fill := range fillOrder {
		sub := remaining
		if fill.fraction > 0 {
			sub = int(float64(remaining) * fill.fraction)
		}
		if sub <= 0 {
			continue
		}
		entries := fetched.entriesFor(fill.block)
		if len(entries) == 0 {
			continue
		}

		// Reserve two characters for the joining separator so the block's
		// measured tokens never exceed its sub-budget.
		text, detail, truncated := buildBlock(fill.block, entries, sub*4-2)
		if text == "" {
			continue
		}
		text = "\n\n" + text
		tokens := EstimateTokens(text)

		blocks = append(blocks, types.ContextBlock{
			Type:      fill.block,
			Tokens:    tokens,
			Source:    fetched.sourceFor(fill.block),
			Detail:    detail,
			Truncated: truncated,
		})
		parts = append(parts, text)
		remaining -= tokens
	}

	total := 0
	for _, b := range blocks {
		total += b.Tokens
	}

	result := &types.CompiledContext{
		CompiledText:        strings.Join(parts, ""),
		ModelRecommendation: model,
		AlternateModels:     alternates,
		TokenCount:          total,
		TokenBudget:         budget,
		Blocks:              blocks,
		TraceID:             traceID,
		DegradedSources:     fetched.degraded,
	}

	c.recordCompile(req, "ok", model, total, start)
	c.logger.Info("context compiled",
		"trace_id", traceID,
		"task_id", req.TaskID,
		"task_type", req.TaskType,
		"complexity", req.Complexity,
		"model", model,
		"tokens", total,
		"budget", budget,
		"blocks", len(blocks),
		"degraded_sources", len(fetched.degraded),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Estimate returns a no-I/O approximation of what Compile would produce:
// the exact system block measurement plus worst-case fractional ceilings for
// every other block under the same budget arithmetic.
func (c *Compiler) Estimate(req *types.CompileRequest) *types.EstimateBreakdown {
	model := req.TargetModel
	if model == "" {
		model, _ = resolveModel(req.Complexity, req.TaskType)
	}

	budget := budgetFor(model, req.TaskType)
	if req.MaxTokens > 0 && req.MaxTokens < budget {
		budget = req.MaxTokens
	}

	sysTokens := EstimateTokens(renderSystemPrompt(req))
	blocks := map[types.BlockType]int{types.BlockSystem: sysTokens}

	remaining := budget - sysTokens
	if remaining < 0 {
		remaining = 0
	}
	for _, fill := range fillOrder {
		if fill.block == types.BlockReferencedFiles &&
			(req.ProjectID == "" || len(req.ReferencedFiles) == 0) {
			continue
		}
		sub := remaining
		if fill.fraction > 0 {
			sub = int(float64(remaining) * fill.fraction)
		}
		if sub <= 0 {
			continue
		}
		blocks[fill.block] = sub
		remaining -= sub
	}

	total := 0
	for _, v := range blocks {
		total += v
	}

	return &types.EstimateBreakdown{
		EstimatedTokens:  total,
		Blocks:           blocks,
		RecommendedModel: model,
		FitsInBudget:     sysTokens <= budget,
		Budget:           budget,
	}
}

func (c *Compiler) recordCompile(req *types.CompileRequest, status, model string, tokens int, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCompile(telemetry.CompileLabels{
		TaskType:   string(req.TaskType),
		Complexity: string(req.Complexity),
		Status:     status,
		Model:      model,
		DurationMs: float64(time.Since(start).Milliseconds()),
		Tokens:     tokens,
	})
}

type fetchedFile struct {
	path    string
	content string
	ok      bool
}

// fetchResult collects the concurrent fan-out's output. files slots are
// written by index, everything else under the mutex.
type fetchResult struct {
	mu        sync.Mutex
	files     []fetchedFile
	tree      []string
	knowledge map[types.BlockType][]sources.Entry
	degraded  []string
}

// fetchAll launches every external fetch concurrently and joins before
// returning. No fetch is retried; failures degrade to empty results.
func (c *Compiler) fetchAll(ctx context.Context, req *types.CompileRequest) *fetchResult {
	res := &fetchResult{
		knowledge: make(map[types.BlockType][]sources.Entry, len(blockCollections)),
	}
	var wg sync.WaitGroup

	if req.ProjectID != "" {
		res.files = make([]fetchedFile, len(req.ReferencedFiles))
		for i, path := range req.ReferencedFiles {
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				content, err := c.repo.File(ctx, req.ProjectID, path)
				if err != nil {
					c.sourceFailed(res, "repository:"+path, err)
					return
				}
				res.files[i] = fetchedFile{path: path, content: content, ok: true}
			}(i, path)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := c.repo.Tree(ctx, req.ProjectID)
			if err != nil {
				c.sourceFailed(res, "repository:tree", err)
				return
			}
			res.mu.Lock()
			res.tree = tree
			res.mu.Unlock()
		}()
	}

	topK := c.cfg().Knowledge.TopK
	for _, bc := range blockCollections {
		wg.Add(1)
		go func(block types.BlockType, collection string) {
			defer wg.Done()
			entries, err := c.knowledge.Search(ctx, collection, req.TaskDescription, topK)
			if err != nil {
				c.sourceFailed(res, "knowledge:"+collection, err)
				return
			}
			res.mu.Lock()
			res.knowledge[block] = entries
			res.mu.Unlock()
		}(bc.block, bc.collection)
	}

	wg.Wait()
	sort.Strings(res.degraded)
	return res
}

func (c *Compiler) sourceFailed(res *fetchResult, name string, err error) {
	res.mu.Lock()
	res.degraded = append(res.degraded, name)
	res.mu.Unlock()

	if c.metrics != nil {
		source := name
		if i := strings.IndexByte(name, ':'); i > 0 {
			source = name[:i]
		}
		c.metrics.RecordSourceFailure(source)
	}
	c.logger.Warn("context source unavailable, continuing with empty result",
		"source", name, "error", err)
}

type blockEntry struct {
	source  string
	content string
}

func (f *fetchResult) entriesFor(block types.BlockType) []blockEntry {
	switch block {
	case types.BlockReferencedFiles:
		out := make([]blockEntry, 0, len(f.files))
		for _, file := range f.files {
			if file.ok && file.content != "" {
				out = append(out, blockEntry{source: file.path, content: file.content})
			}
		}
		return out

	case types.BlockArchitecture:
		var out []blockEntry
		if len(f.tree) > 0 {
			out = append(out, blockEntry{source: "project-tree", content: strings.Join(f.tree, "\n")})
		}
		for _, e := range f.knowledge[block] {
			if e.Content != "" {
				out = append(out, blockEntry{source: e.Source, content: e.Content})
			}
		}
		return out

	default:
		entries := f.knowledge[block]
		out := make([]blockEntry, 0, len(entries))
		for _, e := range entries {
			if e.Content != "" {
				out = append(out, blockEntry{source: e.Source, content: e.Content})
			}
		}
		return out
	}
}

func (f *fetchResult) sourceFor(block types.BlockType) string {
	switch block {
	case types.BlockReferencedFiles:
		return "repository-host"
	case types.BlockArchitecture:
		switch {
		case len(f.tree) > 0 && len(f.knowledge[block]) > 0:
			return "knowledge-store,repository-host"
		case len(f.tree) > 0:
			return "repository-host"
		default:
			return "knowledge-store"
		}
	default:
		return "knowledge-store"
	}
}

func blockHeader(block types.BlockType) string {
	switch block {
	case types.BlockReferencedFiles:
		return "## Referenced files"
	case types.BlockSimilarCode:
		return "## Similar code"
	case types.BlockDesignPatterns:
		return "## Design patterns"
	case types.BlockAntiPatterns:
		return "## Anti-patterns to avoid"
	case types.BlockHumanFeedback:
		return "## Prior human feedback"
	case types.BlockArchitecture:
		return "## Architecture notes"
	case types.BlockExamples:
		return "## Curated examples"
	default:
		return "## Context"
	}
}

// minEntryChars is the smallest slice of a block budget worth spending on
// one more entry; below this a truncated entry carries no structure.
const minEntryChars = 64

// buildBlock assembles one block's text under a hard character budget.
// An entry that overflows the space left is truncated rather than dropped;
// entries after the block fills are cut entirely and flagged via truncated.
func buildBlock(block types.BlockType, entries []blockEntry, charBudget int) (text, detail string, truncated bool) {
	header := blockHeader(block)
	if len(header)+2 >= charBudget {
		return "", "", false
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")

	included, truncatedCount := 0, 0
	for _, e := range entries {
		room := charBudget - sb.Len()
		if room < minEntryChars {
			break
		}
		head := "### " + e.source + "\n"
		contentRoom := room - len(head) - 2
		if contentRoom < minEntryChars/2 {
			break
		}
		content, cut := truncateToChars(e.content, contentRoom)
		sb.WriteString(head)
		sb.WriteString(content)
		sb.WriteString("\n\n")
		included++
		if cut {
			truncatedCount++
		}
	}

	if included == 0 {
		return "", "", false
	}

	detail = fmt.Sprintf("%d of %d entries", included, len(entries))
	if truncatedCount > 0 {
		detail += fmt.Sprintf(", %d truncated", truncatedCount)
	}
	return strings.TrimRight(sb.String(), "\n"), detail, truncatedCount > 0 || included < len(entries)
}
