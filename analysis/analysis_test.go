package analysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(DefaultConfig())
	require.NoError(t, err)
	return a
}

func TestAnalyze_TrivialFunction(t *testing.T) {
	a := newTestAnalyzer(t)

	result, err := a.Analyze(context.Background(), "def f(): pass", "python")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Complexity)
	assert.Empty(t, result.Findings)
	assert.Equal(t, "python", result.Language)
	assert.Len(t, result.Hash, 64)
}

func TestAnalyze_MalformedCode(t *testing.T) {
	a := newTestAnalyzer(t)

	result, err := a.Analyze(context.Background(), "malformed(((", "python")
	require.NoError(t, err, "malformed code degrades, never fails")
	require.Len(t, result.Findings, 1)
	assert.Equal(t, KindParseError, result.Findings[0].Kind)
	assert.Equal(t, SeverityError, result.Findings[0].Severity)
	assert.Equal(t, 1, result.Findings[0].Line)
	assert.Equal(t, 1, result.Complexity)
}

func TestAnalyze_UnsupportedLanguage(t *testing.T) {
	a := newTestAnalyzer(t)

	_, err := a.Analyze(context.Background(), "DISPLAY 'HI'", "cobol")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestAnalyze_Deterministic(t *testing.T) {
	code := "def g(x):\n    if x and x > 1:\n        return x\n    return 0\n"

	// Two separate analyzers, so the comparison is not just a cache hit.
	a1 := newTestAnalyzer(t)
	a2 := newTestAnalyzer(t)

	r1, err := a1.Analyze(context.Background(), code, "python")
	require.NoError(t, err)
	r2, err := a2.Analyze(context.Background(), code, "python")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestAnalyze_CacheHit(t *testing.T) {
	a := newTestAnalyzer(t)

	r1, err := a.Analyze(context.Background(), "x = 1", "python")
	require.NoError(t, err)
	r2, err := a.Analyze(context.Background(), "x = 1", "python")
	require.NoError(t, err)
	assert.Same(t, r1, r2, "second call should come from the cache")

	// Same code, different language misses.
	r3, err := a.Analyze(context.Background(), "x = 1", "javascript")
	require.NoError(t, err)
	assert.NotSame(t, r1, r3)
}

func TestAnalyze_Complexity(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		name     string
		code     string
		language string
		want     int
	}{
		{"plain statement", "x = 1", "python", 1},
		{"one branch no function", "if x:\n    y = 1", "python", 2},
		{"branch with boolean operator", "if a and b:\n    pass", "python", 3},
		{"two functions", "def f(): pass\ndef g(): pass", "python", 2},
		{"function with branch", "def f(x):\n    if x:\n        return 1\n    return 0", "python", 2},
		{"go with condition", "func f(a bool) int {\n\tif a {\n\t\treturn 1\n\t}\n\treturn 0\n}", "go", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.Analyze(context.Background(), tt.code, tt.language)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Complexity)
		})
	}
}

func TestAnalyze_DisallowedConstructs(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		name     string
		code     string
		language string
		message  string
	}{
		{"python bare except", "try:\n    f()\nexcept:\n    pass", "python", "bare except"},
		{"python eval", "y = eval(expr)", "python", "eval()"},
		{"javascript loose equality", "if (a == b) { f(); }", "javascript", "loose equality"},
		{"javascript var", "var x = 1;", "javascript", "var declaration"},
		{"typescript any", "function f(x: any) { return x; }", "typescript", "any type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.Analyze(context.Background(), tt.code, tt.language)
			require.NoError(t, err)

			found := false
			for _, f := range result.Findings {
				if f.Kind == KindDisallowedConstruct && strings.Contains(f.Message, tt.message) {
					found = true
					assert.Equal(t, SeverityWarning, f.Severity)
				}
			}
			assert.True(t, found, "expected a finding mentioning %q, got %+v", tt.message, result.Findings)
		})
	}
}

func TestAnalyze_PatternsIgnoreStringsAndComments(t *testing.T) {
	a := newTestAnalyzer(t)

	result, err := a.Analyze(context.Background(), "x = \"eval(danger)\"  # eval(also here)", "python")
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}

func TestAnalyze_UnreachableCode(t *testing.T) {
	a := newTestAnalyzer(t)

	code := "def f():\n    return 1\n    print(2)\n"
	result, err := a.Analyze(context.Background(), code, "python")
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	assert.Equal(t, KindUnreachableCode, result.Findings[0].Kind)
	assert.Equal(t, 3, result.Findings[0].Line)

	// else after return is a legitimate block resume, not unreachable.
	ok := "def g(x):\n    if x:\n        return 1\n    else:\n        return 2\n"
	result, err = a.Analyze(context.Background(), ok, "python")
	require.NoError(t, err)
	for _, f := range result.Findings {
		assert.NotEqual(t, KindUnreachableCode, f.Kind)
	}
}

func TestAnalyze_LongFunction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFuncLines = 3
	a, err := New(cfg)
	require.NoError(t, err)

	code := "def f():\n    a = 1\n    b = 2\n    c = 3\n    return a + b + c\n"
	result, err := a.Analyze(context.Background(), code, "python")
	require.NoError(t, err)

	found := false
	for _, f := range result.Findings {
		if f.Kind == KindLongFunction {
			found = true
			assert.Equal(t, 1, f.Line)
			assert.Equal(t, SeverityInfo, f.Severity)
		}
	}
	assert.True(t, found, "expected a LongFunction finding, got %+v", result.Findings)
}

func TestAnalyze_FindingsSorted(t *testing.T) {
	a := newTestAnalyzer(t)

	code := "def f():\n    return 1\n    y = eval(x)\n"
	result, err := a.Analyze(context.Background(), code, "python")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Findings), 2)
	for i := 1; i < len(result.Findings); i++ {
		prev, cur := result.Findings[i-1], result.Findings[i]
		assert.True(t, prev.Line < cur.Line || (prev.Line == cur.Line && prev.Kind <= cur.Kind))
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Nanosecond
	a, err := New(cfg)
	require.NoError(t, err)

	// A snippet that passes the balance check so the budgeted passes run.
	_, err = a.Analyze(context.Background(), "def f():\n    return 1\n", "python")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSupportedLanguages(t *testing.T) {
	langs := SupportedLanguages()
	assert.Equal(t, []string{"go", "javascript", "python", "typescript"}, langs)
}
