package assist

import "fmt"

// intentSpec binds an intent to its instruction payload and its output
// normalization.
type intentSpec struct {
	instruction func(req Request) string
	normalize   func(req Request, raw string) *Response
}

var intents = map[Intent]intentSpec{
	IntentGenerateTests: {
		instruction: func(req Request) string {
			return focus(req, fmt.Sprintf(
				"Write thorough unit tests for the following %s code. "+
					"Cover normal behavior, edge cases, and error paths. "+
					"Respond with the test code in a single fenced code block.",
				req.Language))
		},
		normalize: func(req Request, raw string) *Response {
			return &Response{
				Intent: req.Intent,
				Kind:   KindTestCode,
				Text:   extractCodeBlock(raw),
				Suggestions: []string{
					"Run the generated tests before committing them",
					"Review edge-case coverage against your requirements",
				},
			}
		},
	},
	IntentReview: {
		instruction: func(req Request) string {
			return focus(req, fmt.Sprintf(
				"Review the following %s code for correctness, readability, and "+
					"maintainability issues. List each issue as a bullet in the form "+
					"'line N: <severity>: <message>'. Do not rewrite the code.",
				req.Language))
		},
		normalize: func(req Request, raw string) *Response {
			return &Response{
				Intent:   req.Intent,
				Kind:     KindFindings,
				Findings: parseFindings(raw),
				Suggestions: []string{
					"Address errors before warnings",
					"Re-run the review after applying fixes",
				},
			}
		},
	},
	IntentSecurityScan: {
		instruction: func(req Request) string {
			return focus(req, fmt.Sprintf(
				"Scan the following %s code for security vulnerabilities: injection, "+
					"unsafe deserialization, secrets in code, missing validation. List each "+
					"issue as a bullet in the form 'line N: <severity>: <message>'.",
				req.Language))
		},
		normalize: func(req Request, raw string) *Response {
			return &Response{
				Intent:   req.Intent,
				Kind:     KindFindings,
				Findings: parseFindings(raw),
				Suggestions: []string{
					"Validate findings against your threat model",
					"Prefer fixing root causes over suppressing reports",
				},
			}
		},
	},
	IntentOptimize: {
		instruction: func(req Request) string {
			return focus(req, fmt.Sprintf(
				"Suggest performance optimizations for the following %s code. "+
					"Respond with a unified diff in a fenced ```diff block, followed by a "+
					"short explanation.",
				req.Language))
		},
		normalize: func(req Request, raw string) *Response {
			return &Response{
				Intent: req.Intent,
				Kind:   KindDiff,
				Diff:   extractDiff(raw),
				Text:   raw,
				Suggestions: []string{
					"Benchmark before and after applying the diff",
				},
			}
		},
	},
	IntentGenerateDocs: {
		instruction: func(req Request) string {
			return focus(req, fmt.Sprintf(
				"Generate documentation for the following %s code: descriptions of "+
					"functions and types, parameters, return values, and a short usage "+
					"example. Respond in plain prose and code blocks.",
				req.Language))
		},
		normalize: func(req Request, raw string) *Response {
			return &Response{
				Intent: req.Intent,
				Kind:   KindDocumentation,
				Text:   raw,
				Suggestions: []string{
					"Review the generated documentation for accuracy",
					"Keep documentation updated with code changes",
				},
			}
		},
	},
	IntentComplete: {
		instruction: func(req Request) string {
			base := fmt.Sprintf(
				"Complete the following partial %s code. Respond with the completed "+
					"code in a single fenced code block.", req.Language)
			if req.Prompt != "" {
				base += " Instructions: " + req.Prompt
			}
			return focus(req, base)
		},
		normalize: func(req Request, raw string) *Response {
			return &Response{
				Intent: req.Intent,
				Kind:   KindCompletion,
				Text:   extractCodeBlock(raw),
				Suggestions: []string{
					"Test the completed code thoroughly",
				},
			}
		},
	},
}

// focus appends the selection constraint when the request narrows to a
// line range.
func focus(req Request, instruction string) string {
	if req.Selection != nil {
		return fmt.Sprintf("%s Focus on lines %d-%d.", instruction, req.Selection.StartLine, req.Selection.EndLine)
	}
	return instruction
}
