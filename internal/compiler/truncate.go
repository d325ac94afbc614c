package compiler

import (
	"fmt"
	"regexp"
	"strings"
)

// declPattern matches structural declaration lines across the languages the
// platform works on. Truncation keeps every matching line so a cut entry
// still shows its full interface shape.
var declPattern = regexp.MustCompile(`^\s*(func|def|class|type|interface|struct|enum|trait|impl|fn|function|public|private|protected|static|module|package|export)\b`)

// keepBodyLines is how many lines after a declaration survive truncation.
const keepBodyLines = 3

// truncateToChars shrinks content to at most maxChars bytes while preserving
// declaration lines. Body lines beyond the first few after each declaration
// are replaced with an explicit elision marker. Returns the (possibly
// unchanged) content and whether anything was cut.
func truncateToChars(content string, maxChars int) (string, bool) {
	if len(content) <= maxChars {
		return content, false
	}
	if maxChars <= 0 {
		return "", true
	}

	lines := strings.Split(content, "\n")

	if s := skeleton(lines, keepBodyLines); len(s) <= maxChars {
		return s, true
	}
	if s := skeleton(lines, 0); len(s) <= maxChars {
		return s, true
	}

	// Even the bare declaration skeleton is too large; cut it from the end.
	return hardCut(skeleton(lines, 0), maxChars), true
}

// skeleton keeps every declaration line plus up to keep body lines after
// each, recording elided runs as marker lines.
func skeleton(lines []string, keep int) string {
	var sb strings.Builder
	elided := 0
	// Lines before the first declaration get the same allowance.
	bodyLeft := keep

	flush := func() {
		if elided > 0 {
			fmt.Fprintf(&sb, "[... %d lines elided ...]\n", elided)
			elided = 0
		}
	}

	for _, line := range lines {
		if declPattern.MatchString(line) {
			flush()
			sb.WriteString(line)
			sb.WriteByte('\n')
			bodyLeft = keep
			continue
		}
		if bodyLeft > 0 {
			sb.WriteString(line)
			sb.WriteByte('\n')
			bodyLeft--
			continue
		}
		elided++
	}
	flush()

	return strings.TrimRight(sb.String(), "\n")
}

// hardCut trims whole lines from the end of s until it fits maxChars with a
// closing marker appended.
func hardCut(s string, maxChars int) string {
	const marker = "[... truncated ...]"
	limit := maxChars - len(marker) - 1
	if limit <= 0 {
		if maxChars >= len(marker) {
			return marker
		}
		return marker[:maxChars]
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n" + marker
}
