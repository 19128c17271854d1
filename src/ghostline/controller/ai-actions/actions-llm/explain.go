package actionsllm

import (
	"context"
	"fmt"

	action "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/action"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"go.lsp.dev/protocol"
)

const (
	_titleExplain        = "Ghostline: Explain selection"
	_progressExplain     = "Explaining selection"
	_systemPromptExplain = "You explain code to a developer. Describe what the code does, note anything surprising, and keep it short."
)

// ActionExplain explains the selected code in the chat panel.
type ActionExplain struct{}

var _ action.Action = (*ActionExplain)(nil)

// CommandName returns the name of the command.
func (a *ActionExplain) CommandName() string {
	return entity.CommandExplain
}

// Title returns the code action title.
func (a *ActionExplain) Title() string {
	return _titleExplain
}

// Kind returns the code action kind.
func (a *ActionExplain) Kind() protocol.CodeActionKind {
	return protocol.Refactor
}

// IsRelevant offers the action on any non-empty selection.
func (a *ActionExplain) IsRelevant(params *protocol.CodeActionParams) bool {
	return hasSelection(params.Range)
}

// Execute asks the model for an explanation and publishes it to the chat panel.
func (a *ActionExplain) Execute(ctx context.Context, params *action.ExecuteParams, args entity.ActionArgs) error {
	prompt := fmt.Sprintf("Explain this %s code from %s:\n\n%s", params.Document.LanguageID, fileName(args.URI), params.CodeBlock())
	result := params.Complete(ctx, _systemPromptExplain, prompt)
	if result.Failed() {
		return params.ReportFailure(ctx, "Explain", result)
	}
	return params.PublishToChat(ctx, a.CommandName(), result)
}

// ProvideWorkDoneProgressParams returns the progress bar info.
func (a *ActionExplain) ProvideWorkDoneProgressParams(args entity.ActionArgs) *action.ProgressInfoParams {
	return &action.ProgressInfoParams{
		Title:   _progressExplain,
		Message: fileName(args.URI),
	}
}
