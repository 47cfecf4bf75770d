package assist

import (
	"regexp"
	"strconv"
	"strings"
)

// Model output is untrusted and unstructured; everything here is best-effort
// extraction with hard caps.

const maxFindings = 100

var (
	fenceRe  = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)```")
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*)$`)
	lineRe   = regexp.MustCompile(`(?i)\b(?:line|l)\s*(\d+)\s*[:,]?`)
)

// extractCodeBlock returns the first fenced code block, or the whole trimmed
// text when the model ignored the fencing instruction.
func extractCodeBlock(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimRight(m[1], "\n")
	}
	return strings.TrimSpace(raw)
}

// extractDiff prefers a fenced ```diff block, then any fenced block whose
// body looks like a diff, then contiguous diff-looking lines.
func extractDiff(raw string) string {
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		body := strings.TrimRight(m[1], "\n")
		if strings.HasPrefix(m[0], "```diff") || looksLikeDiff(body) {
			return body
		}
	}

	var diffLines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") ||
			strings.HasPrefix(line, "@@") || strings.HasPrefix(line, " ") && len(diffLines) > 0 {
			diffLines = append(diffLines, line)
		}
	}
	if looksLikeDiff(strings.Join(diffLines, "\n")) {
		return strings.Join(diffLines, "\n")
	}
	return ""
}

func looksLikeDiff(s string) bool {
	hasAdd, hasDel := false, false
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			hasAdd = true
		}
		if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
			hasDel = true
		}
	}
	return hasAdd || hasDel
}

// parseFindings extracts bullet items as findings, pulling a line number and
// a severity keyword out of each when present.
func parseFindings(raw string) []ReviewFinding {
	var findings []ReviewFinding
	for _, line := range strings.Split(raw, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}

		finding := ReviewFinding{Message: text, Severity: severityOf(text)}
		if lm := lineRe.FindStringSubmatch(text); lm != nil {
			if n, err := strconv.Atoi(lm[1]); err == nil {
				finding.Line = n
			}
		}
		findings = append(findings, finding)
		if len(findings) >= maxFindings {
			break
		}
	}
	return findings
}

func severityOf(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "critical") || strings.Contains(lower, "high") || strings.Contains(lower, "error"):
		return "error"
	case strings.Contains(lower, "medium") || strings.Contains(lower, "warning") || strings.Contains(lower, "warn"):
		return "warning"
	default:
		return "info"
	}
}
