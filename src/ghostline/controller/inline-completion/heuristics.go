package inlinecompletion

import (
	"strings"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"go.lsp.dev/protocol"
)

const (
	_minLineChars   = 3
	_minPrefixChars = 10
)

// skipReason names the first condition that rules out a completion at the cursor, or "" when none applies.
func skipReason(params *entity.InlineCompletionParams, text string) string {
	if params.Context.SelectedCompletionInfo != nil {
		return "completion menu open"
	}

	if strings.TrimSpace(mapper.LineAt(text, params.Position.Line)) == "" {
		return "blank line"
	}
	if isInComment(mapper.PrefixAt(text, params.Position)) {
		return "inside comment"
	}
	if isInString(linePrefix(text, params.Position)) {
		return "inside string"
	}
	return ""
}

// isInComment reports whether prefix leaves a block comment open.
// Markers inside string literals and line comments are counted too, so a "/*" in a string misfires.
func isInComment(prefix string) bool {
	return strings.Count(prefix, "/*") > strings.Count(prefix, "*/")
}

// isInString reports whether the cursor sits after an odd number of quote or backtick characters on its line.
// Escaped quotes and apostrophes in prose are not recognized.
func isInString(linePrefix string) bool {
	for _, quote := range []string{`"`, `'`, "`"} {
		if strings.Count(linePrefix, quote)%2 == 1 {
			return true
		}
	}
	return false
}

// belowContentThreshold is true when both the current line and the document prefix are too short to complete.
func belowContentThreshold(line, prefix string) bool {
	return len(strings.TrimSpace(line)) < _minLineChars && len(strings.TrimSpace(prefix)) < _minPrefixChars
}

// linePrefix returns the text of the cursor's line before the cursor.
func linePrefix(text string, pos protocol.Position) string {
	return strings.TrimSuffix(mapper.RangeToText(text, protocol.Range{
		Start: protocol.Position{Line: pos.Line},
		End:   pos,
	}), "\n")
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
