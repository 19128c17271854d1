package mapper

import (
	"strings"

	"go.lsp.dev/protocol"
)

// SingleEditToApplyWorkspaceEditParams creates a ApplyWorkspaceEditParams with a single edit to be applied based on the specified parameters.
func SingleEditToApplyWorkspaceEditParams(label string, doc protocol.TextDocumentIdentifier, editRange protocol.Range, newText string) *protocol.ApplyWorkspaceEditParams {
	return TextEditsToApplyWorkspaceEditParams(label, doc, []protocol.TextEdit{{Range: editRange, NewText: newText}})
}

// TextEditsToApplyWorkspaceEditParams creates a ApplyWorkspaceEditParams applying all edits to a single document.
func TextEditsToApplyWorkspaceEditParams(label string, doc protocol.TextDocumentIdentifier, edits []protocol.TextEdit) *protocol.ApplyWorkspaceEditParams {
	return &protocol.ApplyWorkspaceEditParams{
		Label: label,
		Edit: protocol.WorkspaceEdit{
			DocumentChanges: []protocol.TextDocumentEdit{
				{
					TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{TextDocumentIdentifier: doc},
					Edits:        edits,
				},
			},
		},
	}
}

// RangeToText returns the text covered by a range, using UTF-16 character offsets within each line.
// Positions past the end of the document are clamped.
func RangeToText(text string, r protocol.Range) string {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for i := r.Start.Line; i <= r.End.Line && int(i) < len(lines); i++ {
		line := lines[i]
		start, end := 0, len(line)
		if i == r.Start.Line {
			start = utf16ToByteOffset(line, r.Start.Character)
		}
		if i == r.End.Line {
			end = utf16ToByteOffset(line, r.End.Character)
		}
		if start < end {
			b.WriteString(line[start:end])
		}
	}
	return b.String()
}

// LineAt returns the content of a zero-based line without its line terminator.
func LineAt(text string, line uint32) string {
	lines := strings.Split(text, "\n")
	if int(line) >= len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[line], "\r")
}

// PrefixAt returns all text in the document before the given position.
func PrefixAt(text string, pos protocol.Position) string {
	return RangeToText(text, protocol.Range{End: pos})
}

func utf16ToByteOffset(line string, character uint32) int {
	var units uint32
	for i, r := range line {
		if units >= character {
			return i
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return len(line)
}
