package entity

import "go.lsp.dev/protocol"

// Commands executed through workspace/executeCommand.
const (
	CommandInsertSuggestion        = "ghostline.insertSuggestion"
	CommandToggleInlineCompletions = "ghostline.toggleInlineCompletions"
	CommandToggleAgentMode         = "ghostline.toggleAgentMode"

	CommandAttachWorkspaceContext = "ghostline.attachWorkspaceContext"
	CommandClearWorkspaceContext  = "ghostline.clearWorkspaceContext"

	CommandAsk              = "ghostline.ask"
	CommandChat             = "ghostline.chat"
	CommandOpenChatPanel    = "ghostline.openChatPanel"
	CommandClearChatHistory = "ghostline.clearChatHistory"

	CommandExplain       = "ghostline.explain"
	CommandRefactor      = "ghostline.refactor"
	CommandDocument      = "ghostline.document"
	CommandExplainError  = "ghostline.explainError"
	CommandGenerateTests = "ghostline.generateTests"

	CommandSetAPIKey     = "ghostline.setApiKey"
	CommandRemoveAPIKey  = "ghostline.removeApiKey"
	CommandCheckAPIKey   = "ghostline.checkApiKey"
	CommandShowTelemetry = "ghostline.showTelemetry"
)

// Notifications sent from the daemon to the editor side panel.
const (
	NotificationChatResponse    = "ghostline/chatResponse"
	NotificationOpenChatPanel   = "ghostline/openChatPanel"
	NotificationAgentSuggestion = "ghostline/agentSuggestion"
	NotificationTelemetry       = "ghostline/telemetry"
)

// InsertSuggestionArgs are the arguments of ghostline.insertSuggestion.
type InsertSuggestionArgs struct {
	URI      protocol.DocumentURI `json:"uri"`
	Position protocol.Position    `json:"position"`
	Text     string               `json:"text,omitempty"`
}

// AskArgs are the arguments of ghostline.ask.
type AskArgs struct {
	Prompt              string `json:"prompt"`
	UseWorkspaceContext bool   `json:"useWorkspaceContext"`
}

// ChatArgs are the arguments of ghostline.chat.
type ChatArgs struct {
	Message             string `json:"message"`
	UseWorkspaceContext bool   `json:"useWorkspaceContext"`
}

// WorkspaceContextMode selects how ghostline.attachWorkspaceContext gathers files.
type WorkspaceContextMode string

const (
	WorkspaceContextManual    WorkspaceContextMode = "manual"
	WorkspaceContextEmbedding WorkspaceContextMode = "embedding"
)

// AttachWorkspaceContextArgs are the arguments of ghostline.attachWorkspaceContext.
type AttachWorkspaceContextArgs struct {
	Mode  WorkspaceContextMode `json:"mode"`
	Paths []string             `json:"paths,omitempty"`
	Query string               `json:"query,omitempty"`
}

// APIKeyArgs are the arguments of the API key commands.
type APIKeyArgs struct {
	Provider ProviderName `json:"provider"`
	Key      string       `json:"key,omitempty"`
}

// ChatResponse is the payload of ghostline/chatResponse.
type ChatResponse struct {
	Command string        `json:"command"`
	Message ChatMessage   `json:"message"`
	Error   string        `json:"error,omitempty"`
	Usage   *Usage        `json:"usage,omitempty"`
	History []ChatMessage `json:"history,omitempty"`
}

// AgentSuggestion is the payload of ghostline/agentSuggestion.
type AgentSuggestion struct {
	URI      protocol.DocumentURI   `json:"uri"`
	Position protocol.Position      `json:"position"`
	Items    []InlineCompletionItem `json:"items"`
}

// ActionArgs are the arguments of the AI action commands offered as code actions.
type ActionArgs struct {
	URI         protocol.DocumentURI  `json:"uri"`
	Range       protocol.Range        `json:"range"`
	Diagnostics []protocol.Diagnostic `json:"diagnostics,omitempty"`
	// Instruction optionally guides ghostline.refactor.
	Instruction string `json:"instruction,omitempty"`
}
