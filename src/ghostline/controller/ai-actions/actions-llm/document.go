package actionsllm

import (
	"context"
	"fmt"
	"strings"

	action "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/action"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"go.lsp.dev/protocol"
)

const (
	_titleDocument        = "Ghostline: Document selection"
	_progressDocument     = "Writing documentation"
	_systemPromptDocument = "You write documentation comments. Return only the comment, using the comment syntax and conventions of the language, with no code."
)

// ActionDocument inserts a generated doc comment above the selection.
type ActionDocument struct{}

var _ action.Action = (*ActionDocument)(nil)

// CommandName returns the name of the command.
func (a *ActionDocument) CommandName() string {
	return entity.CommandDocument
}

// Title returns the code action title.
func (a *ActionDocument) Title() string {
	return _titleDocument
}

// Kind returns the code action kind.
func (a *ActionDocument) Kind() protocol.CodeActionKind {
	return protocol.RefactorRewrite
}

// IsRelevant offers the action on any non-empty selection.
func (a *ActionDocument) IsRelevant(params *protocol.CodeActionParams) bool {
	return hasSelection(params.Range)
}

// Execute inserts the comment at the start of the selection's first line, indented to match it.
func (a *ActionDocument) Execute(ctx context.Context, params *action.ExecuteParams, args entity.ActionArgs) error {
	prompt := fmt.Sprintf("Write a documentation comment for this %s code from %s:\n\n%s", params.Document.LanguageID, fileName(args.URI), params.CodeBlock())
	result := params.Complete(ctx, _systemPromptDocument, prompt)
	if result.Failed() {
		return params.ReportFailure(ctx, "Document", result)
	}

	comment := action.StripCodeFences(result.Text)
	if comment == "" {
		return params.IdeGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: "No documentation was generated.",
		})
	}

	line := mapper.LineAt(params.Document.Text, args.Range.Start.Line)
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	insertAt := protocol.Position{Line: args.Range.Start.Line}

	edit := mapper.SingleEditToApplyWorkspaceEditParams(_titleDocument, protocol.TextDocumentIdentifier{URI: args.URI}, protocol.Range{Start: insertAt, End: insertAt}, indentBlock(comment, indent)+"\n")
	resp, err := params.IdeGateway.ApplyEdit(ctx, edit)
	if err != nil {
		return fmt.Errorf("inserting documentation: %w", err)
	}
	if resp != nil && !resp.Applied {
		return params.IdeGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeWarning,
			Message: fmt.Sprintf("The documentation was not inserted: %s", resp.FailureReason),
		})
	}
	return nil
}

// ProvideWorkDoneProgressParams returns the progress bar info.
func (a *ActionDocument) ProvideWorkDoneProgressParams(args entity.ActionArgs) *action.ProgressInfoParams {
	return &action.ProgressInfoParams{
		Title:   _progressDocument,
		Message: fileName(args.URI),
	}
}

// indentBlock removes the common indentation of text and prefixes every non-blank line with indent.
func indentBlock(text string, indent string) string {
	lines := strings.Split(text, "\n")
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common < 0 {
		common = 0
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = indent + line[common:]
	}
	return strings.Join(lines, "\n")
}
