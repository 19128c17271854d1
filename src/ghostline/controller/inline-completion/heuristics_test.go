package inlinecompletion

import (
	"testing"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/stretchr/testify/assert"
	"go.lsp.dev/protocol"
)

func TestIsInComment(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		expected bool
	}{
		{name: "no comment", prefix: "x := 1\ny := ", expected: false},
		{name: "unterminated block comment", prefix: "x := 1\n/* describe ", expected: true},
		{name: "closed block comment", prefix: "/* a */ x := ", expected: false},
		{name: "second comment open", prefix: "/* a */\n/* b", expected: true},
		{name: "marker inside string misfires", prefix: `s := "/*"` + "\nx := ", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isInComment(tt.prefix))
		})
	}
}

func TestIsInString(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		expected bool
	}{
		{name: "no quotes", prefix: "fmt.Println(", expected: false},
		{name: "open double quote", prefix: `fmt.Println("hel`, expected: true},
		{name: "closed double quote", prefix: `fmt.Println("hello", `, expected: false},
		{name: "open single quote", prefix: `c := 'a`, expected: true},
		{name: "open backtick", prefix: "q := `select", expected: true},
		{name: "escaped quote misfires", prefix: `s := "a\"b", `, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isInString(tt.prefix))
		})
	}
}

func TestSkipReason(t *testing.T) {
	const text = "package main\n\nfunc main() {\n\tx := \"abc\n\t/* note\n\t*/\n\tfmt.Println(\n}"

	tests := []struct {
		name     string
		params   *entity.InlineCompletionParams
		expected string
	}{
		{
			name: "completion menu open",
			params: &entity.InlineCompletionParams{
				TextDocumentPositionParams: protocol.TextDocumentPositionParams{Position: factory.Position(6, 13)},
				Context:                    entity.InlineCompletionContext{SelectedCompletionInfo: &entity.SelectedCompletionInfo{Text: "Println"}},
			},
			expected: "completion menu open",
		},
		{
			name:     "blank line",
			params:   paramsAt(1, 0),
			expected: "blank line",
		},
		{
			name:     "inside string",
			params:   paramsAt(3, 9),
			expected: "inside string",
		},
		{
			name:     "inside comment",
			params:   paramsAt(4, 8),
			expected: "inside comment",
		},
		{
			name:     "completable",
			params:   paramsAt(6, 13),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, skipReason(tt.params, text))
		})
	}
}

func TestBelowContentThreshold(t *testing.T) {
	assert.True(t, belowContentThreshold("  x", "  x"))
	assert.True(t, belowContentThreshold("ab", "x\nab"))
	assert.False(t, belowContentThreshold("abc", "abc"))
	assert.False(t, belowContentThreshold("x", "package main\nx"))
}

func TestLinePrefix(t *testing.T) {
	text := "first\n  second line\nthird"
	assert.Equal(t, "  sec", linePrefix(text, factory.Position(1, 5)))
	assert.Equal(t, "  second line", linePrefix(text, factory.Position(1, 40)))
	assert.Equal(t, "", linePrefix(text, factory.Position(2, 0)))
}

func TestLeadingWhitespace(t *testing.T) {
	assert.Equal(t, "\t  ", leadingWhitespace("\t  x := 1"))
	assert.Equal(t, "", leadingWhitespace("x"))
	assert.Equal(t, "   ", leadingWhitespace("   "))
}

func paramsAt(line, character uint32) *entity.InlineCompletionParams {
	return &entity.InlineCompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///ws/main.go"},
			Position:     factory.Position(line, character),
		},
	}
}
