package compiler

import (
	"fmt"
	"strings"

	"github.com/atelierhq/loom-core/internal/types"
)

// coreRules is appended verbatim to every compiled prompt. The system block
// is all-or-nothing: it is never truncated, because cutting it would corrupt
// the task semantics every other block hangs off.
const coreRules = `## Core rules
- Follow the existing code style and conventions of the project.
- Prefer minimal, focused changes; do not refactor unrelated code.
- Never invent APIs, file paths, or dependencies that are not in context.
- Handle errors the way the surrounding code does.
- Output complete, compilable code for every file you modify.
- State assumptions explicitly when context is insufficient.`

// renderSystemPrompt renders the mandatory system block: task header,
// description, and the fixed rule set.
func renderSystemPrompt(req *types.CompileRequest) string {
	var sb strings.Builder
	sb.WriteString("# Task\n")
	fmt.Fprintf(&sb, "- ID: %s\n", req.TaskID)
	fmt.Fprintf(&sb, "- Type: %s\n", req.TaskType)
	fmt.Fprintf(&sb, "- Complexity: %s\n", req.Complexity)
	sb.WriteString("\n## Description\n")
	sb.WriteString(strings.TrimSpace(req.TaskDescription))
	sb.WriteString("\n\n")
	sb.WriteString(coreRules)
	return sb.String()
}
