package assist

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"fenced with language", "```go\nfunc f() {}\n```", "func f() {}"},
		{"fenced without language", "```\nx = 1\n```", "x = 1"},
		{"prose around fence", "Sure!\n```python\nprint(1)\n```\nDone.", "print(1)"},
		{"first of two fences", "```\nfirst\n```\n```\nsecond\n```", "first"},
		{"no fence falls back to raw", "  just text  ", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractCodeBlock(tt.raw))
		})
	}
}

func TestExtractDiff(t *testing.T) {
	t.Run("fenced diff block", func(t *testing.T) {
		raw := "```diff\n-old line\n+new line\n```"
		assert.Equal(t, "-old line\n+new line", extractDiff(raw))
	})

	t.Run("diff-looking fence without language tag", func(t *testing.T) {
		raw := "```\n-a\n+b\n```"
		assert.Equal(t, "-a\n+b", extractDiff(raw))
	})

	t.Run("bare diff lines", func(t *testing.T) {
		raw := "Try this:\n-removed\n+added\nthe end"
		got := extractDiff(raw)
		assert.Contains(t, got, "-removed")
		assert.Contains(t, got, "+added")
	})

	t.Run("no diff at all", func(t *testing.T) {
		assert.Equal(t, "", extractDiff("nothing to change, looks good"))
	})
}

func TestParseFindings(t *testing.T) {
	raw := strings.Join([]string{
		"Review results:",
		"- line 5: error: off-by-one in loop bound",
		"* L12, warning: shadowed variable",
		"1. critical issue with no location",
		"2) style nit",
		"",
		"not a bullet",
	}, "\n")

	findings := parseFindings(raw)
	assert.Len(t, findings, 4)

	assert.Equal(t, 5, findings[0].Line)
	assert.Equal(t, "error", findings[0].Severity)
	assert.Equal(t, 12, findings[1].Line)
	assert.Equal(t, "warning", findings[1].Severity)
	assert.Equal(t, 0, findings[2].Line)
	assert.Equal(t, "error", findings[2].Severity) // "critical" maps to error
	assert.Equal(t, "info", findings[3].Severity)
}

func TestParseFindings_Capped(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxFindings+50; i++ {
		fmt.Fprintf(&b, "- issue number %d\n", i)
	}
	findings := parseFindings(b.String())
	assert.Len(t, findings, maxFindings)
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, "error", severityOf("HIGH risk of data loss"))
	assert.Equal(t, "warning", severityOf("medium: consider refactoring"))
	assert.Equal(t, "info", severityOf("minor style suggestion"))
}
