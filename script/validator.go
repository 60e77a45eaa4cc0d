package script

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/gopher-lua/parse"
)

var errLineRe = regexp.MustCompile(`line:(\d+)`)

type blockRule struct {
	re         *regexp.Regexp
	suggestion string
}

// Validator statically checks scripts before execution: forbidden functions,
// syntax, and a missing-return heuristic. A Validator is immutable after
// construction and safe for concurrent use.
type Validator struct {
	rules     []blockRule
	functions []FunctionInfo
	names     []string
}

// NewValidator builds a validator that reports the given catalog in its
// results and uses the catalog names for "did you mean" suggestions.
func NewValidator(functions []FunctionInfo) *Validator {
	var rules []blockRule
	seenModules := map[string]struct{}{}
	for _, bf := range Blocklist() {
		quoted := regexp.QuoteMeta(bf.Pattern)
		rules = append(rules, blockRule{
			re:         regexp.MustCompile(`\b` + quoted + `\s*\(`),
			suggestion: bf.Suggestion,
		})
		// Any reference into a blocked module is flagged, not just the
		// call forms listed above.
		if module, _, ok := strings.Cut(bf.Pattern, "."); ok {
			if _, dup := seenModules[module]; dup {
				continue
			}
			seenModules[module] = struct{}{}
			rules = append(rules, blockRule{
				re:         regexp.MustCompile(`\b` + regexp.QuoteMeta(module) + `\.`),
				suggestion: fmt.Sprintf("The '%s' module is not available. %s", module, bf.Suggestion),
			})
		}
	}

	names := make([]string, 0, len(functions))
	for _, f := range functions {
		names = append(names, f.Name)
	}

	return &Validator{rules: rules, functions: functions, names: names}
}

// Functions returns the catalog attached to every result.
func (v *Validator) Functions() []FunctionInfo {
	return v.functions
}

// Validate checks source without executing it. The result always carries the
// function catalog so a failed caller can discover what is available.
func (v *Validator) Validate(source string) *ValidationResult {
	var errs []ValidationError
	var warnings []ValidationWarning

	for _, rule := range v.rules {
		loc := rule.re.FindStringIndex(source)
		if loc == nil {
			continue
		}
		match := strings.TrimRight(source[loc[0]:loc[1]], "( \t")
		errs = append(errs, ValidationError{
			Kind:        KindForbiddenFunction,
			Message:     fmt.Sprintf("forbidden function call detected: %q", match),
			Line:        lineNumber(source, loc[0]),
			Suggestion:  rule.suggestion,
			CodeSnippet: snippetAround(source, loc[0], 40),
		})
	}

	if err := checkSyntax(source); err != nil {
		msg, line := describeSyntaxError(err)
		ve := ValidationError{
			Kind:       KindSyntaxError,
			Message:    msg,
			Line:       line,
			Suggestion: v.suggestFix(msg),
		}
		if line > 0 {
			ve.CodeSnippet = lineAt(source, line)
		}
		errs = append(errs, ve)
	}

	if !hasReturnStatement(source) && strings.TrimSpace(source) != "" {
		warnings = append(warnings, missingReturnWarning())
	}

	return &ValidationResult{
		Valid:              len(errs) == 0,
		Errors:             errs,
		Warnings:           warnings,
		AvailableFunctions: v.functions,
	}
}

func checkSyntax(source string) error {
	_, err := parse.Parse(strings.NewReader(source), "<script>")
	return err
}

func describeSyntaxError(err error) (string, int) {
	var pe *parse.Error
	if errors.As(err, &pe) && pe.Pos.Line > 0 {
		return err.Error(), pe.Pos.Line
	}
	msg := err.Error()
	if m := errLineRe.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return msg, line
	}
	return msg, 0
}

func (v *Validator) suggestFix(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "unexpected symbol"):
		switch {
		case strings.Contains(lower, "'='"):
			return "Check for assignment vs comparison: use '=' for assignment, '==' for comparison."
		case strings.Contains(lower, "')'"):
			return "Check for matching parentheses. You may have an extra ')'."
		case strings.Contains(lower, "'('"):
			return "Check for matching parentheses. You may be missing '(' or have an extra one."
		}
		return "Check the syntax around the unexpected symbol."
	case strings.Contains(lower, "'end' expected"):
		return "Add 'end' to close your function, if, for, or while block."
	case strings.Contains(lower, "'then' expected"):
		return "Add 'then' after your 'if' condition."
	case strings.Contains(lower, "'do' expected"):
		return "Add 'do' after your 'for' or 'while' statement."
	case strings.Contains(lower, "unfinished string"), strings.Contains(lower, "unterminated string"):
		return "Close your string with a matching quote (' or \")."
	}
	return "Review the Lua syntax. Ensure all blocks are properly closed and punctuation is correct."
}

// SuggestFunction finds a catalog function similar to name, for "did you
// mean" hints on nil-call runtime errors. Returns "" when nothing is close.
func (v *Validator) SuggestFunction(name string) string {
	lower := strings.ToLower(name)
	prefix := lower
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	for _, candidate := range v.names {
		cl := strings.ToLower(candidate)
		if strings.HasPrefix(cl, prefix) {
			return candidate
		}
		if levenshtein(lower, cl) <= 2 {
			return candidate
		}
	}
	return ""
}

func hasReturnStatement(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		if idx := strings.Index(trimmed, "--"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		if strings.Contains(trimmed, "return") {
			return true
		}
	}
	return false
}

func lineNumber(source string, pos int) int {
	return strings.Count(source[:pos], "\n") + 1
}

func snippetAround(source string, pos, context int) string {
	start := pos - context
	if start < 0 {
		start = 0
	}
	end := pos + context
	if end > len(source) {
		end = len(source)
	}
	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(strings.TrimSpace(source[start:end]))
	if end < len(source) {
		b.WriteString("...")
	}
	return b.String()
}

func lineAt(source string, line int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}

func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}
	prev := make([]int, len(br)+1)
	cur := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		cur[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(br)]
}
