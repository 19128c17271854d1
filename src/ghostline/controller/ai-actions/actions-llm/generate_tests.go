package actionsllm

import (
	"context"
	"fmt"

	action "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/action"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"go.lsp.dev/protocol"
)

const (
	_titleGenerateTests        = "Ghostline: Generate tests"
	_progressGenerateTests     = "Generating tests"
	_systemPromptGenerateTests = "You write unit tests. Use the testing conventions of the language and return one fenced code block followed by a short note on what is covered."
)

// ActionGenerateTests writes unit tests for the selection to the chat panel.
type ActionGenerateTests struct{}

var _ action.Action = (*ActionGenerateTests)(nil)

// CommandName returns the name of the command.
func (a *ActionGenerateTests) CommandName() string {
	return entity.CommandGenerateTests
}

// Title returns the code action title.
func (a *ActionGenerateTests) Title() string {
	return _titleGenerateTests
}

// Kind returns the code action kind.
func (a *ActionGenerateTests) Kind() protocol.CodeActionKind {
	return protocol.Refactor
}

// IsRelevant offers the action on any non-empty selection.
func (a *ActionGenerateTests) IsRelevant(params *protocol.CodeActionParams) bool {
	return hasSelection(params.Range)
}

// Execute generates tests and publishes them to the chat panel.
func (a *ActionGenerateTests) Execute(ctx context.Context, params *action.ExecuteParams, args entity.ActionArgs) error {
	prompt := fmt.Sprintf("Write unit tests for this %s code from %s:\n\n%s", params.Document.LanguageID, fileName(args.URI), params.CodeBlock())
	result := params.Complete(ctx, _systemPromptGenerateTests, prompt)
	if result.Failed() {
		return params.ReportFailure(ctx, "Generate tests", result)
	}
	return params.PublishToChat(ctx, a.CommandName(), result)
}

// ProvideWorkDoneProgressParams returns the progress bar info.
func (a *ActionGenerateTests) ProvideWorkDoneProgressParams(args entity.ActionArgs) *action.ProgressInfoParams {
	return &action.ProgressInfoParams{
		Title:   _progressGenerateTests,
		Message: fileName(args.URI),
	}
}
