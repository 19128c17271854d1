package entity

import "go.lsp.dev/protocol"

// MethodTextDocumentInlineCompletion is the LSP 3.18 request for inline (ghost text) completions.
const MethodTextDocumentInlineCompletion = "textDocument/inlineCompletion"

// InlineCompletionTriggerKind describes how an inline completion request was triggered.
type InlineCompletionTriggerKind int

const (
	// InlineCompletionTriggerInvoked indicates an explicit user request.
	InlineCompletionTriggerInvoked InlineCompletionTriggerKind = 1
	// InlineCompletionTriggerAutomatic indicates a request made while typing.
	InlineCompletionTriggerAutomatic InlineCompletionTriggerKind = 2
)

// SelectedCompletionInfo describes the item currently selected in an open completion widget.
type SelectedCompletionInfo struct {
	Range protocol.Range `json:"range"`
	Text  string         `json:"text"`
}

// InlineCompletionContext carries additional information about the request.
type InlineCompletionContext struct {
	TriggerKind            InlineCompletionTriggerKind `json:"triggerKind"`
	SelectedCompletionInfo *SelectedCompletionInfo     `json:"selectedCompletionInfo,omitempty"`
}

// InlineCompletionParams are the parameters of a textDocument/inlineCompletion request.
type InlineCompletionParams struct {
	protocol.TextDocumentPositionParams
	protocol.WorkDoneProgressParams
	Context InlineCompletionContext `json:"context"`
}

// InlineCompletionItem is a single suggestion rendered as ghost text.
type InlineCompletionItem struct {
	InsertText string            `json:"insertText"`
	FilterText string            `json:"filterText,omitempty"`
	Range      *protocol.Range   `json:"range,omitempty"`
	Command    *protocol.Command `json:"command,omitempty"`
}

// InlineCompletionList is the result of a textDocument/inlineCompletion request.
type InlineCompletionList struct {
	Items []InlineCompletionItem `json:"items"`
}

// InlineCompletionOptions is advertised in the server capabilities.
type InlineCompletionOptions struct {
	protocol.WorkDoneProgressOptions
}
