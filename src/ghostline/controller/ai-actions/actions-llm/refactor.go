package actionsllm

import (
	"context"
	"fmt"
	"strings"

	action "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/action"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.lsp.dev/protocol"
)

const (
	_titleRefactor              = "Ghostline: Refactor selection"
	_progressRefactor           = "Refactoring selection"
	_outputPrefixRefactor       = "refactor"
	_defaultRefactorInstruction = "Improve readability without changing behavior."
	_systemPromptRefactor       = "You rewrite code. Return only the rewritten code in a single fenced code block, with no explanation. Keep the original indentation."
)

// ActionRefactor rewrites the selection and applies the difference as text edits.
type ActionRefactor struct{}

var _ action.Action = (*ActionRefactor)(nil)

// CommandName returns the name of the command.
func (a *ActionRefactor) CommandName() string {
	return entity.CommandRefactor
}

// Title returns the code action title.
func (a *ActionRefactor) Title() string {
	return _titleRefactor
}

// Kind returns the code action kind.
func (a *ActionRefactor) Kind() protocol.CodeActionKind {
	return protocol.RefactorRewrite
}

// IsRelevant offers the action on any non-empty selection.
func (a *ActionRefactor) IsRelevant(params *protocol.CodeActionParams) bool {
	return hasSelection(params.Range)
}

// Execute asks for a rewrite, previews the diff in the output channel and applies it as minimal edits.
func (a *ActionRefactor) Execute(ctx context.Context, params *action.ExecuteParams, args entity.ActionArgs) error {
	instruction := args.Instruction
	if instruction == "" {
		instruction = _defaultRefactorInstruction
	}

	prompt := fmt.Sprintf("Refactor this %s code from %s. %s\n\n%s", params.Document.LanguageID, fileName(args.URI), instruction, params.CodeBlock())
	result := params.Complete(ctx, _systemPromptRefactor, prompt)
	if result.Failed() {
		return params.ReportFailure(ctx, "Refactor", result)
	}

	original := params.Selection
	rewritten := action.StripCodeFences(result.Text)
	if strings.HasSuffix(original, "\n") && !strings.HasSuffix(rewritten, "\n") {
		rewritten += "\n"
	}
	if rewritten == original {
		return params.IdeGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: "Refactor produced no changes.",
		})
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupMerge(dmp.DiffMain(original, rewritten, false))
	edits, err := mapper.DiffsToTextEdits(diffs)
	if err != nil {
		return fmt.Errorf("converting refactor to edits: %w", err)
	}
	edits = offsetEdits(edits, args.Range.Start)

	writer, err := params.IdeGateway.GetLogMessageWriter(ctx, _outputPrefixRefactor)
	if err != nil {
		return err
	}
	if _, err := writer.Write([]byte(linePreview(original, rewritten))); err != nil {
		return fmt.Errorf("writing refactor preview: %w", err)
	}

	resp, err := params.IdeGateway.ApplyEdit(ctx, mapper.TextEditsToApplyWorkspaceEditParams(_titleRefactor, protocol.TextDocumentIdentifier{URI: args.URI}, edits))
	if err != nil {
		return fmt.Errorf("applying refactor: %w", err)
	}
	if resp != nil && !resp.Applied {
		return params.IdeGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeWarning,
			Message: fmt.Sprintf("The refactor was not applied: %s", resp.FailureReason),
		})
	}
	return nil
}

// ProvideWorkDoneProgressParams returns the progress bar info.
func (a *ActionRefactor) ProvideWorkDoneProgressParams(args entity.ActionArgs) *action.ProgressInfoParams {
	return &action.ProgressInfoParams{
		Title:   _progressRefactor,
		Message: fileName(args.URI),
	}
}

// offsetEdits moves edits computed against the selection text to document positions.
func offsetEdits(edits []protocol.TextEdit, start protocol.Position) []protocol.TextEdit {
	shift := func(p protocol.Position) protocol.Position {
		if p.Line == 0 {
			p.Character += start.Character
		}
		p.Line += start.Line
		return p
	}
	for i := range edits {
		edits[i].Range.Start = shift(edits[i].Range.Start)
		edits[i].Range.End = shift(edits[i].Range.End)
	}
	return edits
}

// linePreview renders a line based diff with "-", "+" and " " prefixes.
func linePreview(original, rewritten string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(original, rewritten)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}
