package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	protocolmapper "github.com/ghostline-dev/ghostline/src/ghostline/internal/protocol"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// EditOffset stores a string modification based on character offset in the string.
type EditOffset struct {
	start int
	end   int
	text  string
}

// RequestToInitializeParams maps the parameters from a jsconrpc2.Request into protocol.InitializeParams.
func RequestToInitializeParams(req jsonrpc2.Request) (*protocol.InitializeParams, error) {
	params := protocol.InitializeParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToInitializedParams maps the parameters from a jsconrpc2.Request into protocol.InitializedParams.
func RequestToInitializedParams(req jsonrpc2.Request) (*protocol.InitializedParams, error) {
	params := protocol.InitializedParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidChangeTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidChangeTextDocumentParams.
func RequestToDidChangeTextDocumentParams(req jsonrpc2.Request) (*protocol.DidChangeTextDocumentParams, error) {
	params := protocol.DidChangeTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidCloseTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidCloseTextDocumentParams.
func RequestToDidCloseTextDocumentParams(req jsonrpc2.Request) (*protocol.DidCloseTextDocumentParams, error) {
	params := protocol.DidCloseTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidOpenTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidOpenTextDocumentParams.
func RequestToDidOpenTextDocumentParams(req jsonrpc2.Request) (*protocol.DidOpenTextDocumentParams, error) {
	params := protocol.DidOpenTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidSaveTextDocumentParams maps the parameters from a jsconrpc2.Request into protocol.DidSaveTextDocumentParams.
func RequestToDidSaveTextDocumentParams(req jsonrpc2.Request) (*protocol.DidSaveTextDocumentParams, error) {
	params := protocol.DidSaveTextDocumentParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToDidChangeConfigurationParams maps the parameters from a jsconrpc2.Request into protocol.DidChangeConfigurationParams.
func RequestToDidChangeConfigurationParams(req jsonrpc2.Request) (*protocol.DidChangeConfigurationParams, error) {
	params := protocol.DidChangeConfigurationParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToCodeActionParams maps the parameters from a jsconrpc2.Request into protocol.CodeActionParams.
func RequestToCodeActionParams(req jsonrpc2.Request) (*protocol.CodeActionParams, error) {
	params := protocol.CodeActionParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToInlineCompletionParams maps the parameters from a jsconrpc2.Request into entity.InlineCompletionParams.
func RequestToInlineCompletionParams(req jsonrpc2.Request) (*entity.InlineCompletionParams, error) {
	params := entity.InlineCompletionParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// RequestToExecuteCommandParams maps the parameters from a jsconrpc2.Request into protocol.ExecuteCommandParams.
func RequestToExecuteCommandParams(req jsonrpc2.Request) (*protocol.ExecuteCommandParams, error) {
	params := protocol.ExecuteCommandParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}

	// Keep each argument as raw JSON so that plugins can decode into their own types.
	rawArgs := []interface{}{}
	for _, arg := range params.Arguments {
		rawArg, err := json.Marshal(arg)
		if err != nil {
			return nil, wrapErrParse(err)
		}
		rawArgs = append(rawArgs, rawArg)
	}

	params.Arguments = rawArgs
	return &params, nil
}

// RequestToWorkDoneProgressCancelParams maps the parameters from a jsconrpc2.Request into protocol.WorkDoneProgressCancelParams.
func RequestToWorkDoneProgressCancelParams(req jsonrpc2.Request) (*protocol.WorkDoneProgressCancelParams, error) {
	params := protocol.WorkDoneProgressCancelParams{}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

// ExecuteCommandParamsToArgs decodes the first command argument into dest.
// Arguments may be raw JSON (as produced by RequestToExecuteCommandParams) or any JSON-encodable value.
func ExecuteCommandParamsToArgs(params *protocol.ExecuteCommandParams, dest interface{}) error {
	if params == nil || len(params.Arguments) == 0 {
		return errors.NoArgumentsError
	}

	var raw []byte
	switch arg := params.Arguments[0].(type) {
	case []byte:
		raw = arg
	case json.RawMessage:
		raw = arg
	default:
		encoded, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("encoding command argument: %w", err)
		}
		raw = encoded
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decoding arguments for %q: %w", params.Command, err)
	}
	return nil
}

// NewCodeAction creates a new CodeAction with the given values.
func NewCodeAction(title string, command string, kind protocol.CodeActionKind, arguments interface{}) protocol.CodeAction {
	return protocol.CodeAction{
		Title: title,
		Kind:  kind,
		Command: &protocol.Command{
			Title:     title,
			Command:   command,
			Arguments: []interface{}{arguments},
		},
	}
}

// ApplyContentChanges applies the given content change events to a given text string.
// A change without a range replaces the full document.
func ApplyContentChanges(initialText string, changes []protocol.TextDocumentContentChangeEvent) (string, error) {
	content := []byte(initialText)
	for _, change := range changes {
		if change.Range == nil {
			content = []byte(change.Text)
			continue
		}

		m := protocolmapper.NewTextOffsetMapper(content)
		start, err := m.PositionOffset(change.Range.Start)
		if err != nil {
			return "", fmt.Errorf("unable to apply changes: %w", err)
		}
		end, err := m.PositionOffset(change.Range.End)
		if err != nil {
			return "", fmt.Errorf("unable to apply changes: %w", err)
		}
		var buf bytes.Buffer
		buf.Write(content[:start])
		buf.WriteString(change.Text)
		buf.Write(content[end:])
		content = buf.Bytes()
	}

	return string(content), nil
}

// DiffsToEditOffsets converts diffs into a list of text edits based on offsets within the initial text.
func DiffsToEditOffsets(diffs []diffmatchpatch.Diff) (initialText bytes.Buffer, offsets []EditOffset) {
	edits := make([]EditOffset, 0, len(diffs))
	offset := 0
	for _, d := range diffs {
		start := offset
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			initialText.WriteString(d.Text)
			offset += len(d.Text)
			edits = append(edits, EditOffset{start: start, end: offset, text: ""})
		case diffmatchpatch.DiffEqual:
			initialText.WriteString(d.Text)
			offset += len(d.Text)
		case diffmatchpatch.DiffInsert:
			edits = append(edits, EditOffset{start: start, end: start, text: d.Text})
		}
	}
	return initialText, edits
}

// EditOffsetsToTextEdits converts a list of offset based edits to TextEdits formatted for LSP protocol.
func EditOffsetsToTextEdits(initialText bytes.Buffer, edits []EditOffset) ([]protocol.TextEdit, error) {
	protocolTextEdits := make([]protocol.TextEdit, 0, len(edits))
	m := protocolmapper.NewTextOffsetMapper(initialText.Bytes())
	for _, edit := range edits {
		startPosition, err := m.OffsetPosition(edit.start)
		if err != nil {
			return nil, err
		}
		endPosition, err := m.OffsetPosition(edit.end)
		if err != nil {
			return nil, err
		}
		protocolTextEdits = append(protocolTextEdits, rangeToTextEdit(PositionsToRange(startPosition, endPosition), edit.text))
	}
	return protocolTextEdits, nil
}

// DiffsToTextEdits converts diffs into to a list of text edits that can be applied to a document.
func DiffsToTextEdits(diffs []diffmatchpatch.Diff) ([]protocol.TextEdit, error) {
	foundText, edits := DiffsToEditOffsets(diffs)
	return EditOffsetsToTextEdits(foundText, edits)
}

// PositionsToRange converts two positions into a range.
func PositionsToRange(start, end protocol.Position) protocol.Range {
	return protocol.Range{
		Start: start,
		End:   end,
	}
}

func rangeToTextEdit(r protocol.Range, text string) protocol.TextEdit {
	return protocol.TextEdit{
		Range:   r,
		NewText: text,
	}
}

func wrapErrParse(err error) error {
	return fmt.Errorf("%s: %w", jsonrpc2.ErrParse, err)
}
