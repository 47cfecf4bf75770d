package analysis

import "regexp"

// constructCheck flags a disallowed construct in a supported language.
type constructCheck struct {
	pattern *regexp.Regexp
	message string
}

// languageSpec describes how to count decisions and find functions in one
// supported language.
type languageSpec struct {
	name         string
	decisions    *regexp.Regexp
	funcDecl     *regexp.Regexp
	lineComment  string
	terminators  *regexp.Regexp // statements after which code is unreachable
	blockResumes *regexp.Regexp // lines that legitimately follow a terminator
	disallowed   []constructCheck
}

var languages = map[string]languageSpec{
	"python": {
		name:         "python",
		decisions:    regexp.MustCompile(`(?:^|[^\w])(if|elif|for|while|except|and|or)(?:[^\w]|$)`),
		funcDecl:     regexp.MustCompile(`^\s*def\s+\w+`),
		lineComment:  "#",
		terminators:  regexp.MustCompile(`^\s*(return\b|raise\b|continue$|break$)`),
		blockResumes: regexp.MustCompile(`^\s*(else\b|elif\b|except\b|finally\b|def\b|class\b|@)`),
		disallowed: []constructCheck{
			{regexp.MustCompile(`except\s*:`), "bare except clause; catch specific exceptions"},
			{regexp.MustCompile(`\beval\s*\(`), "use of eval(); potential security risk"},
			{regexp.MustCompile(`\bexec\s*\(`), "use of exec(); potential security risk"},
		},
	},
	"javascript": {
		name:         "javascript",
		decisions:    regexp.MustCompile(`(?:^|[^\w])(if|for|while|case|catch)(?:[^\w]|$)|&&|\|\||\?`),
		funcDecl:     regexp.MustCompile(`\bfunction\b|=>`),
		lineComment:  "//",
		terminators:  regexp.MustCompile(`^\s*(return\b|throw\b|continue;?$|break;?$)`),
		blockResumes: regexp.MustCompile(`^\s*(\}|else\b|case\b|default\b|catch\b|finally\b)`),
		disallowed: []constructCheck{
			{regexp.MustCompile(`[^=!<>]==[^=]`), "loose equality; use === for strict comparison"},
			{regexp.MustCompile(`\bvar\s+\w`), "var declaration; prefer let or const"},
			{regexp.MustCompile(`\beval\s*\(`), "use of eval(); potential security risk"},
		},
	},
	"typescript": {
		name:         "typescript",
		decisions:    regexp.MustCompile(`(?:^|[^\w])(if|for|while|case|catch)(?:[^\w]|$)|&&|\|\||\?`),
		funcDecl:     regexp.MustCompile(`\bfunction\b|=>`),
		lineComment:  "//",
		terminators:  regexp.MustCompile(`^\s*(return\b|throw\b|continue;?$|break;?$)`),
		blockResumes: regexp.MustCompile(`^\s*(\}|else\b|case\b|default\b|catch\b|finally\b)`),
		disallowed: []constructCheck{
			{regexp.MustCompile(`[^=!<>]==[^=]`), "loose equality; use === for strict comparison"},
			{regexp.MustCompile(`\beval\s*\(`), "use of eval(); potential security risk"},
			{regexp.MustCompile(`:\s*any\b`), "explicit any type; prefer a concrete type"},
		},
	},
	"go": {
		name:         "go",
		decisions:    regexp.MustCompile(`(?:^|[^\w])(if|for|case)(?:[^\w]|$)|&&|\|\|`),
		funcDecl:     regexp.MustCompile(`^\s*func\b`),
		lineComment:  "//",
		terminators:  regexp.MustCompile(`^\s*(return\b|panic\(|continue$|break$)`),
		blockResumes: regexp.MustCompile(`^\s*(\}|case\b|default\b)`),
		disallowed:   nil,
	},
}
