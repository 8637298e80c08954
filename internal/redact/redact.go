// Package redact replaces known secret-shaped tokens in artifact text
// before it is written to disk — the collaborator spec.md §6 names as the
// "Secret-redaction filter".
package redact

import "strings"

// pattern pairs a literal token prefix with the label substituted for it.
type pattern struct {
	prefix string
	label  string
}

// knownPatterns is applied in order; first match wins per token, mirroring
// the closed set spec.md §6 enumerates (Anthropic, OpenAI, generic API key,
// several GitHub shapes, Slack, AWS access key, JWT, npm).
var knownPatterns = []pattern{
	{"sk-ant-", "ANTHROPIC_KEY"},
	{"sk-proj-", "OPENAI_KEY"},
	{"sk-", "API_KEY"},
	{"ghp_", "GITHUB_PAT"},
	{"gho_", "GITHUB_OAUTH"},
	{"ghs_", "GITHUB_APP_TOKEN"},
	{"ghu_", "GITHUB_USER_TOKEN"},
	{"github_pat_", "GITHUB_FINE_PAT"},
	{"xoxb-", "SLACK_BOT_TOKEN"},
	{"xoxp-", "SLACK_USER_TOKEN"},
	{"AKIA", "AWS_ACCESS_KEY"},
	{"eyJ", "JWT_TOKEN"},
	{"npm_", "NPM_TOKEN"},
}

// Redactor redacts secret-shaped tokens from text, optionally extended with
// caller-supplied patterns.
type Redactor struct {
	custom []pattern
}

// New returns a Redactor using only the built-in pattern set.
func New() *Redactor {
	return &Redactor{}
}

// AddPattern registers an additional literal-substring pattern. Any
// occurrence of literal is replaced with "[REDACTED:<label>]".
func (r *Redactor) AddPattern(literal, label string) {
	r.custom = append(r.custom, pattern{prefix: literal, label: label})
}

// Result is the outcome of redacting a block of text.
type Result struct {
	Value          string
	RedactionCount int
}

// Line redacts secrets from a single line of text.
func (r *Redactor) Line(input string) string {
	output := input

	for _, p := range knownPatterns {
		replacement := "[REDACTED:" + p.label + "]"
		searchFrom := 0
		for {
			idx := strings.Index(output[searchFrom:], p.prefix)
			if idx < 0 {
				break
			}
			absPos := searchFrom + idx
			end := tokenEnd(output, absPos)
			output = output[:absPos] + replacement + output[end:]
			searchFrom = absPos + len(replacement)
		}
	}

	for _, p := range r.custom {
		if strings.Contains(output, p.prefix) {
			output = strings.ReplaceAll(output, p.prefix, "[REDACTED:"+p.label+"]")
		}
	}

	return output
}

// Redact redacts every line of a multi-line string and reports how many
// lines were changed.
func (r *Redactor) Redact(input string) Result {
	lines := strings.Split(input, "\n")
	count := 0
	for i, line := range lines {
		redacted := r.Line(line)
		if redacted != line {
			count++
		}
		lines[i] = redacted
	}
	return Result{Value: strings.Join(lines, "\n"), RedactionCount: count}
}

// tokenEnd finds the end of a token starting at start: a run of
// non-whitespace, non-quote, non-punctuation characters.
func tokenEnd(s string, start int) int {
	for i := start; i < len(s); i++ {
		switch c := rune(s[i]); {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			return i
		case c == '"' || c == '\'' || c == ',' || c == ';' || c == ')' || c == ']' || c == '}':
			return i
		}
	}
	return len(s)
}
