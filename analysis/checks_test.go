package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckBalanced(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		ok       bool
		line     int
	}{
		{"balanced", "f(a[0], {b: 1})", true, 0},
		{"empty", "", true, 0},
		{"unclosed paren", "malformed(((", false, 1},
		{"stray closer", "f())", false, 1},
		{"mismatched pair", "f(]", false, 1},
		{"brackets inside string", `x = "([{"`, true, 0},
		{"multiline unclosed", "a = 1\nb = f(\nc = 2", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, _, ok := checkBalanced(tt.code)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, tt.line, line)
			}
		})
	}
}

func TestCodeOnly(t *testing.T) {
	assert.Equal(t, "x = "+strings.Repeat(" ", 8), codeOnly(`x = "danger"`, "#"))
	assert.Equal(t, "y = 1 ", codeOnly("y = 1 # trailing", "#"))
	assert.Equal(t, "z", codeOnly("z", ""))
}

func TestIndentOf(t *testing.T) {
	assert.Equal(t, 0, indentOf("x"))
	assert.Equal(t, 4, indentOf("    x"))
	assert.Equal(t, 4, indentOf("\tx"))
	assert.Equal(t, 8, indentOf("\t    x"))
}
