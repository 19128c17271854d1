package inlinecompletion

import (
	"fmt"
	"strings"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"go.lsp.dev/protocol"
)

const (
	_cursorMarker = "<CURSOR>"
	_systemPrompt = "You are a code completion engine. Continue the code at " + _cursorMarker +
		". Reply with only the text to insert at the cursor, without explanations and without repeating code before the cursor."
)

// documentContext is the part of a document sent along with a completion request.
type documentContext struct {
	// Important holds declaration lines found above the preceding window, in file order.
	Important []string
	// Preceding holds the lines directly above the cursor line.
	Preceding []string
	// LinePrefix and LineSuffix split the cursor line at the cursor.
	LinePrefix string
	LineSuffix string
}

// collectContext gathers the preceding window and the important lines above it.
// Important lines are searched from the top of the file up to lineCap lines scaled by the profile's fileImportance.
func collectContext(text string, pos protocol.Position, profile entity.LanguageProfile, lineCap int) documentContext {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	cursor := int(pos.Line)
	if cursor >= len(lines) {
		cursor = len(lines) - 1
	}

	start := max(cursor-max(profile.ContextLines, 0), 0)
	scanLimit := min(int(float64(lineCap)*profile.FileImportance), start)

	result := documentContext{Preceding: lines[start:cursor]}
	patterns := profile.CompiledPatterns()
	for _, line := range lines[:max(scanLimit, 0)] {
		for _, re := range patterns {
			if re.MatchString(line) {
				result.Important = append(result.Important, line)
				break
			}
		}
	}

	result.LinePrefix = linePrefix(text, pos)
	result.LineSuffix = strings.TrimPrefix(lines[cursor], result.LinePrefix)
	return result
}

// buildRequest renders the document context and optional workspace context into a model request.
func buildRequest(doc protocol.TextDocumentItem, dc documentContext, workspace string, opts completionConfig) entity.ModelRequest {
	var b strings.Builder
	if workspace != "" {
		b.WriteString("Related workspace files:\n")
		b.WriteString(workspace)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Language: %s\nFile: %s\n\n", doc.LanguageID, doc.URI.Filename())
	if len(dc.Important) > 0 {
		b.WriteString(strings.Join(dc.Important, "\n"))
		b.WriteString("\n...\n")
	}
	for _, line := range dc.Preceding {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(dc.LinePrefix)
	b.WriteString(_cursorMarker)
	b.WriteString(dc.LineSuffix)

	return entity.ModelRequest{
		SystemPrompt: _systemPrompt,
		Messages:     []entity.ChatMessage{{Role: entity.RoleUser, Content: b.String()}},
		MaxTokens:    opts.MaxTokens,
		Temperature:  opts.Temperature,
	}
}
