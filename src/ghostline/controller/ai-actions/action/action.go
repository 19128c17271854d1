package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghostline-dev/ghostline/src/ghostline/controller/chat"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	"go.lsp.dev/protocol"
)

// SupportedCodeActionKinds includes the code action kinds offered by AI actions. An action's Kind must be listed here.
var SupportedCodeActionKinds = map[protocol.CodeActionKind]struct{}{
	protocol.QuickFix:        {},
	protocol.Refactor:        {},
	protocol.RefactorRewrite: {},
}

// Config holds the model parameters shared by all actions.
type Config struct {
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

// ExecuteParams provides values from the controller to the action.
type ExecuteParams struct {
	IdeGateway    ideclient.Gateway
	LLM           llm.Gateway
	Chat          chat.Controller
	Telemetry     telemetry.Telemetry
	Settings      entity.Settings
	Config        Config
	ProgressToken *protocol.ProgressToken

	// Document is the current content of the document the action runs on.
	Document protocol.TextDocumentItem
	// Selection is the text covered by the action's range.
	Selection string
}

// ProgressInfoParams provides parameters for display during progress of action in status bar
type ProgressInfoParams struct {
	Title   string
	Message string
}

// Action is an LLM backed command offered as a code action on a selection.
// Actions are created once and reused, they must not keep state across calls.
type Action interface {
	// CommandName returns the name of the command which will be executed when clicked.
	CommandName() string
	// Title is shown in the code action menu.
	Title() string
	Kind() protocol.CodeActionKind
	// IsRelevant reports whether the action is offered for the code action request. Must be cheap.
	IsRelevant(params *protocol.CodeActionParams) bool
	// Execute runs the action. A model failure is reported to the user and is not returned as an error.
	Execute(ctx context.Context, params *ExecuteParams, args entity.ActionArgs) error
	// ProvideWorkDoneProgressParams returns info to display on progress of this action during execution
	ProvideWorkDoneProgressParams(args entity.ActionArgs) *ProgressInfoParams
}

// Complete sends a single turn prompt to the session's model and records usage.
func (p *ExecuteParams) Complete(ctx context.Context, systemPrompt string, content string) entity.ModelResult {
	result := p.LLM.CallModel(ctx, p.Settings.ModelID(), entity.ModelRequest{
		SystemPrompt:   systemPrompt,
		Messages:       []entity.ChatMessage{{Role: entity.RoleUser, Content: content}},
		MaxTokens:      p.Config.MaxTokens,
		Temperature:    p.Config.Temperature,
		CustomEndpoint: p.Settings.CustomEndpoint,
	})
	if result.Failed() {
		p.Telemetry.Inc(telemetry.MetricErrors)
		return result
	}
	p.Telemetry.RecordUsage(result.Usage)
	return result
}

// ReportFailure shows a failed model call to the user. Configuration problems are warnings, the rest are errors.
// A canceled run is not shown and returns the context's error.
func (p *ExecuteParams) ReportFailure(ctx context.Context, title string, result entity.ModelResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msgType := protocol.MessageTypeError
	if result.Misconfigured {
		msgType = protocol.MessageTypeWarning
	}
	return p.IdeGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    msgType,
		Message: fmt.Sprintf("%s failed: %s", title, result.Error),
	})
}

// PublishToChat sends the action's answer to the chat panel and the output channel.
func (p *ExecuteParams) PublishToChat(ctx context.Context, command string, result entity.ModelResult) error {
	return p.Chat.Publish(ctx, entity.ChatResponse{
		Command: command,
		Message: entity.ChatMessage{Role: entity.RoleAssistant, Content: result.Text},
		Usage:   result.Usage,
	})
}

// CodeBlock wraps the selection in a fenced block tagged with the document's language.
func (p *ExecuteParams) CodeBlock() string {
	return fmt.Sprintf("```%s\n%s\n```", p.Document.LanguageID, strings.TrimRight(p.Selection, "\n"))
}

// StripCodeFences returns the body of the first fenced block in text, or the trimmed text when it has none.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return trimmed
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimRight(body, " \t\r\n")
}
