package actionsllm

import (
	"context"
	"fmt"
	"strings"

	action "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/action"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"go.lsp.dev/protocol"
)

const (
	_titleExplainError        = "Ghostline: Explain error"
	_progressExplainError     = "Explaining diagnostics"
	_systemPromptExplainError = "You help a developer fix compiler and linter errors. Explain each error in plain words and suggest a fix."
)

// ActionExplainError explains the diagnostics reported on the selection.
type ActionExplainError struct{}

var _ action.Action = (*ActionExplainError)(nil)

// CommandName returns the name of the command.
func (a *ActionExplainError) CommandName() string {
	return entity.CommandExplainError
}

// Title returns the code action title.
func (a *ActionExplainError) Title() string {
	return _titleExplainError
}

// Kind returns the code action kind.
func (a *ActionExplainError) Kind() protocol.CodeActionKind {
	return protocol.QuickFix
}

// IsRelevant offers the action only when the request carries diagnostics.
func (a *ActionExplainError) IsRelevant(params *protocol.CodeActionParams) bool {
	return hasSelection(params.Range) && len(params.Context.Diagnostics) > 0
}

// Execute explains the diagnostics against the selected code.
func (a *ActionExplainError) Execute(ctx context.Context, params *action.ExecuteParams, args entity.ActionArgs) error {
	if len(args.Diagnostics) == 0 {
		return params.IdeGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: "There are no diagnostics on the selection to explain.",
		})
	}

	prompt := fmt.Sprintf("These diagnostics were reported in %s:\n%s\n\nCode:\n%s",
		fileName(args.URI), formatDiagnostics(args.Diagnostics), params.CodeBlock())
	result := params.Complete(ctx, _systemPromptExplainError, prompt)
	if result.Failed() {
		return params.ReportFailure(ctx, "Explain error", result)
	}
	return params.PublishToChat(ctx, a.CommandName(), result)
}

// ProvideWorkDoneProgressParams returns the progress bar info.
func (a *ActionExplainError) ProvideWorkDoneProgressParams(args entity.ActionArgs) *action.ProgressInfoParams {
	return &action.ProgressInfoParams{
		Title:   _progressExplainError,
		Message: fmt.Sprintf("%d diagnostic(s) in %s", len(args.Diagnostics), fileName(args.URI)),
	}
}

// formatDiagnostics renders one diagnostic per line with a 1-based line number.
func formatDiagnostics(diagnostics []protocol.Diagnostic) string {
	lines := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		line := fmt.Sprintf("- line %d: %s", d.Range.Start.Line+1, d.Message)
		if d.Source != "" {
			line += fmt.Sprintf(" (%s)", d.Source)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
