package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghostline-dev/ghostline/src/ghostline/controller/settings"
	workspacecontext "github.com/ghostline-dev/ghostline/src/ghostline/controller/workspace-context"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/logfilewriter"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	chatrepository "github.com/ghostline-dev/ghostline/src/ghostline/repository/chat"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session"
	"github.com/gofrs/uuid"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination chatmock/chat_mock.go -package chatmock . Controller

const (
	_nameKey   = "chat"
	_configKey = "chat"

	_defaultSystemPrompt  = "You are Ghostline, a coding assistant inside the user's editor. Answer concisely and use fenced code blocks for code."
	_defaultMaxTokens     = 1024
	_defaultContextTokens = 2000
	_outputPrefix         = "chat"
)

var _commands = []string{
	entity.CommandAsk,
	entity.CommandChat,
	entity.CommandOpenChatPanel,
	entity.CommandClearChatHistory,
}

// Controller answers questions and keeps a conversation per session.
type Controller interface {
	StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error)
	// Publish sends a response to the chat panel and the output channel.
	Publish(ctx context.Context, resp entity.ChatResponse) error
}

// Params are inbound parameters to initialize a new plugin.
type Params struct {
	fx.In

	Sessions         session.Repository
	History          chatrepository.Repository
	Settings         settings.Controller
	WorkspaceContext workspacecontext.Controller
	LLM              llm.Gateway
	IdeGateway       ideclient.Gateway
	Telemetry        telemetry.Telemetry
	ActivityLog      logfilewriter.ActivityLog
	Config           config.Provider
	Logger           *zap.SugaredLogger
}

type chatConfig struct {
	SystemPrompt  string  `yaml:"systemPrompt"`
	MaxTokens     int     `yaml:"maxTokens"`
	Temperature   float64 `yaml:"temperature"`
	ContextTokens int     `yaml:"contextTokens"`
}

type controller struct {
	sessions         session.Repository
	history          chatrepository.Repository
	settings         settings.Controller
	workspaceContext workspacecontext.Controller
	llm              llm.Gateway
	ideGateway       ideclient.Gateway
	telemetry        telemetry.Telemetry
	activityLog      logfilewriter.ActivityLog
	logger           *zap.SugaredLogger
	config           chatConfig
}

// New creates a chat controller.
func New(p Params) (Controller, error) {
	cfg := chatConfig{}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = _defaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = _defaultMaxTokens
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = _defaultContextTokens
	}

	return &controller{
		sessions:         p.Sessions,
		history:          p.History,
		settings:         p.Settings,
		workspaceContext: p.WorkspaceContext,
		llm:              p.LLM,
		ideGateway:       p.IdeGateway,
		telemetry:        p.Telemetry,
		activityLog:      p.ActivityLog,
		logger:           p.Logger.With("plugin", _nameKey),
		config:           cfg,
	}, nil
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error) {
	priorities := map[string]ghostlineplugin.Priority{
		protocol.MethodInitialize:              ghostlineplugin.PriorityRegular,
		protocol.MethodWorkspaceExecuteCommand: ghostlineplugin.PriorityAsync,
		ghostlineplugin.MethodEndSession:       ghostlineplugin.PriorityRegular,
	}

	methods := &ghostlineplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize:     c.initialize,
		ExecuteCommand: c.executeCommand,
		EndSession:     c.endSession,
	}

	return ghostlineplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) Publish(ctx context.Context, resp entity.ChatResponse) error {
	if err := c.ideGateway.Notify(ctx, entity.NotificationChatResponse, resp); err != nil {
		c.logger.Warnf("unable to send chat response to panel: %v", err)
	}

	writer, err := c.ideGateway.GetLogMessageWriter(ctx, _outputPrefix)
	if err != nil {
		return fmt.Errorf("getting output writer: %w", err)
	}
	text := resp.Message.Content
	if resp.Error != "" {
		text = "Error: " + resp.Error
	}
	if _, err := writer.Write([]byte(text)); err != nil {
		return fmt.Errorf("writing chat response: %w", err)
	}
	return nil
}

func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	if err := mapper.InitializeResultAppendExecuteCommandProvider(result, &protocol.ExecuteCommandOptions{Commands: _commands}); err != nil {
		return fmt.Errorf("failed to append ExecuteCommandProvider: %w", err)
	}
	return nil
}

func (c *controller) endSession(ctx context.Context, id uuid.UUID) error {
	return c.history.Delete(ctx, id)
}

func (c *controller) executeCommand(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	switch params.Command {
	case entity.CommandAsk:
		return c.ask(ctx, params)
	case entity.CommandChat:
		return c.chat(ctx, params)
	case entity.CommandOpenChatPanel:
		return c.openChatPanel(ctx)
	case entity.CommandClearChatHistory:
		return c.clearChatHistory(ctx)
	}
	return nil
}

// ask answers a single prompt without reading or writing the session's history.
func (c *controller) ask(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	var args entity.AskArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err != nil {
		return err
	}
	if args.Prompt == "" {
		return c.warn(ctx, "Nothing to ask, the prompt is empty.")
	}

	content := c.withContext(ctx, args.Prompt, args.UseWorkspaceContext)
	result, err := c.call(ctx, []entity.ChatMessage{{Role: entity.RoleUser, Content: content}})
	if err != nil {
		return err
	}
	return c.respond(ctx, entity.CommandAsk, result, nil)
}

// chat sends the whole conversation. The user turn is kept even when the call fails so a retry sees it.
func (c *controller) chat(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	var args entity.ChatArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err != nil {
		return err
	}
	if args.Message == "" {
		return c.warn(ctx, "Nothing to send, the message is empty.")
	}

	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	userTurn := entity.ChatMessage{Role: entity.RoleUser, Content: args.Message}
	if err := c.history.Append(ctx, s.UUID, userTurn); err != nil {
		return fmt.Errorf("appending user turn: %w", err)
	}
	history, err := c.history.History(ctx, s.UUID)
	if err != nil {
		return fmt.Errorf("reading chat history: %w", err)
	}

	// The context prefix only goes on the outgoing copy of the newest turn.
	outgoing := make([]entity.ChatMessage, len(history))
	copy(outgoing, history)
	last := len(outgoing) - 1
	outgoing[last].Content = c.withContext(ctx, outgoing[last].Content, args.UseWorkspaceContext)

	result, err := c.call(ctx, outgoing)
	if err != nil {
		return err
	}
	if !result.Failed() {
		assistantTurn := entity.ChatMessage{Role: entity.RoleAssistant, Content: result.Text}
		if err := c.history.Append(ctx, s.UUID, assistantTurn); err != nil {
			return fmt.Errorf("appending assistant turn: %w", err)
		}
		history = append(history, assistantTurn)
	}
	return c.respond(ctx, entity.CommandChat, result, history)
}

func (c *controller) openChatPanel(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}
	history, err := c.history.History(ctx, s.UUID)
	if err != nil {
		return fmt.Errorf("reading chat history: %w", err)
	}
	return c.ideGateway.Notify(ctx, entity.NotificationOpenChatPanel, entity.ChatResponse{
		Command: entity.CommandOpenChatPanel,
		History: history,
	})
}

func (c *controller) clearChatHistory(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}
	if err := c.history.Clear(ctx, s.UUID); err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}

	c.activityLog.Info("clear chat history")
	return c.ideGateway.Notify(ctx, entity.NotificationOpenChatPanel, entity.ChatResponse{
		Command: entity.CommandClearChatHistory,
		History: []entity.ChatMessage{},
	})
}

func (c *controller) call(ctx context.Context, msgs []entity.ChatMessage) (entity.ModelResult, error) {
	current, err := c.settings.Get(ctx)
	if err != nil {
		return entity.ModelResult{}, err
	}

	c.telemetry.Inc(telemetry.MetricChatTurns)
	result := c.llm.CallModel(ctx, current.ModelID(), entity.ModelRequest{
		SystemPrompt:   c.config.SystemPrompt,
		Messages:       msgs,
		MaxTokens:      c.config.MaxTokens,
		Temperature:    c.config.Temperature,
		CustomEndpoint: current.CustomEndpoint,
	})
	if result.Failed() {
		c.telemetry.Inc(telemetry.MetricErrors)
		c.activityLog.Error("chat", errors.New(result.Error), "model", current.ModelID())
	} else {
		c.telemetry.RecordUsage(result.Usage)
		c.activityLog.Info("chat", "model", current.ModelID())
	}
	return result, nil
}

// respond publishes the result. Failures go into the chat bubble, and configuration problems also raise a warning.
func (c *controller) respond(ctx context.Context, command string, result entity.ModelResult, history []entity.ChatMessage) error {
	resp := entity.ChatResponse{
		Command: command,
		Message: entity.ChatMessage{Role: entity.RoleAssistant, Content: result.Text},
		Error:   result.Error,
		Usage:   result.Usage,
		History: history,
	}
	if result.Misconfigured {
		if err := c.warn(ctx, result.Error); err != nil {
			c.logger.Warnf("unable to show configuration warning: %v", err)
		}
	}
	return c.Publish(ctx, resp)
}

// withContext prefixes content with the assembled workspace context when requested.
func (c *controller) withContext(ctx context.Context, content string, use bool) string {
	if !use {
		return content
	}
	assembled, err := c.workspaceContext.Assemble(ctx, content, c.config.ContextTokens)
	if err != nil {
		c.logger.Warnf("assembling workspace context: %v", err)
	}
	if assembled == "" {
		return content
	}
	return "Workspace context:\n" + assembled + "\n\n" + content
}

func (c *controller) warn(ctx context.Context, msg string) error {
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeWarning,
		Message: msg,
	})
}
