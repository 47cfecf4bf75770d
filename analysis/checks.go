package analysis

import "strings"

// codeOnly blanks out string literals and strips trailing line comments, so
// pattern checks do not fire inside text.
func codeOnly(line, comment string) string {
	var b strings.Builder
	inStr := byte(0)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if inStr != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == inStr {
				inStr = 0
			}
			b.WriteByte(' ')
			continue
		}
		if ch == '\'' || ch == '"' || ch == '`' {
			inStr = ch
			b.WriteByte(' ')
			continue
		}
		if comment != "" && strings.HasPrefix(line[i:], comment) {
			break
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// checkBalanced scans for unbalanced brackets with string-literal awareness.
// It returns the best-effort location of the first problem.
func checkBalanced(code string) (line, col int, ok bool) {
	type open struct {
		ch        byte
		line, col int
	}
	var stack []open
	closers := map[byte]byte{')': '(', ']': '[', '}': '{'}

	curLine, curCol := 1, 0
	inStr := byte(0)
	for i := 0; i < len(code); i++ {
		ch := code[i]
		if ch == '\n' {
			curLine++
			curCol = 0
			inStr = 0 // best effort: don't let an unclosed quote swallow the file
			continue
		}
		curCol++

		if inStr != 0 {
			if ch == '\\' {
				i++
				curCol++
			} else if ch == inStr {
				inStr = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			inStr = ch
		case '(', '[', '{':
			stack = append(stack, open{ch, curLine, curCol})
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1].ch != closers[ch] {
				return curLine, curCol, false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		first := stack[0]
		return first.line, first.col, false
	}
	return 0, 0, true
}

// checkDisallowed flags constructs the language's check set forbids.
func checkDisallowed(lines []string, lang languageSpec, _ Config) []Finding {
	var findings []Finding
	for i, raw := range lines {
		code := codeOnly(raw, lang.lineComment)
		for _, check := range lang.disallowed {
			if loc := check.pattern.FindStringIndex(code); loc != nil {
				findings = append(findings, Finding{
					Kind:     KindDisallowedConstruct,
					Line:     i + 1,
					Column:   loc[0] + 1,
					Message:  check.message,
					Severity: SeverityWarning,
				})
			}
		}
	}
	return findings
}

// checkUnreachable flags a statement directly following a terminator at the
// same or deeper indentation, unless it legitimately resumes a block.
func checkUnreachable(lines []string, lang languageSpec, _ Config) []Finding {
	var findings []Finding
	for i, raw := range lines {
		code := codeOnly(raw, lang.lineComment)
		if !lang.terminators.MatchString(code) {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			next := codeOnly(lines[j], lang.lineComment)
			if strings.TrimSpace(next) == "" {
				continue
			}
			if !lang.blockResumes.MatchString(next) && indentOf(next) >= indentOf(code) {
				findings = append(findings, Finding{
					Kind:     KindUnreachableCode,
					Line:     j + 1,
					Column:   indentOf(next) + 1,
					Message:  "statement is unreachable",
					Severity: SeverityWarning,
				})
			}
			break
		}
	}
	return findings
}

// checkLongFunctions flags functions spanning more lines than the budget.
func checkLongFunctions(lines []string, lang languageSpec, cfg Config) []Finding {
	var findings []Finding
	var starts []int
	for i, raw := range lines {
		if lang.funcDecl.MatchString(codeOnly(raw, lang.lineComment)) {
			starts = append(starts, i)
		}
	}
	for k, start := range starts {
		end := len(lines)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		if span := end - start; span > cfg.MaxFuncLines {
			findings = append(findings, Finding{
				Kind:     KindLongFunction,
				Line:     start + 1,
				Column:   1,
				Message:  "function is overly long; consider splitting it",
				Severity: SeverityInfo,
			})
		}
	}
	return findings
}

// complexity counts decision points plus one per function. A snippet with no
// functions scores its decision count plus one.
func complexity(lines []string, lang languageSpec) int {
	decisions, funcs := 0, 0
	for _, raw := range lines {
		code := codeOnly(raw, lang.lineComment)
		decisions += len(lang.decisions.FindAllString(code, -1))
		if lang.funcDecl.MatchString(code) {
			funcs++
		}
	}
	if funcs == 0 {
		return decisions + 1
	}
	return decisions + funcs
}

func indentOf(line string) int {
	n := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
