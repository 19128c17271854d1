package aiactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	action "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/action"
	actionsllm "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions/actions-llm"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/chat"
	docsync "github.com/ghostline-dev/ghostline/src/ghostline/controller/doc-sync"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/settings"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm"
	ghostlineerrors "github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/logfilewriter"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session"
	"github.com/gofrs/uuid"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var allActions = []action.Action{
	&actionsllm.ActionExplain{},
	&actionsllm.ActionRefactor{},
	&actionsllm.ActionDocument{},
	&actionsllm.ActionExplainError{},
	&actionsllm.ActionGenerateTests{},
}

const (
	_nameKey          = "ai-actions"
	_configKey        = "actions"
	_defaultMaxTokens = 1024
)

// Params defines the dependencies that will be available to this controller.
type Params struct {
	fx.In

	Sessions    session.Repository
	Documents   docsync.Controller
	Settings    settings.Controller
	Chat        chat.Controller
	LLM         llm.Gateway
	IdeGateway  ideclient.Gateway
	Telemetry   telemetry.Telemetry
	ActivityLog logfilewriter.ActivityLog
	Config      config.Provider
	Logger      *zap.SugaredLogger
}

// Controller offers AI actions as code actions and runs them as commands.
type Controller interface {
	StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error)
}

type controller struct {
	sessions    session.Repository
	documents   docsync.Controller
	settings    settings.Controller
	chat        chat.Controller
	llm         llm.Gateway
	ideGateway  ideclient.Gateway
	telemetry   telemetry.Telemetry
	activityLog logfilewriter.ActivityLog
	logger      *zap.SugaredLogger
	config      action.Config

	actions           map[string]action.Action
	pendingActionRuns *pendingActionRunStore
	pendingCmds       map[protocol.ProgressToken]context.CancelFunc
	cmdMu             sync.Mutex
}

// New creates a new controller for AI actions.
func New(p Params) (Controller, error) {
	cfg := action.Config{}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = _defaultMaxTokens
	}

	actions := make(map[string]action.Action, len(allActions))
	for _, a := range allActions {
		if _, ok := action.SupportedCodeActionKinds[a.Kind()]; !ok {
			return nil, fmt.Errorf("action %q has unsupported kind %q", a.CommandName(), a.Kind())
		}
		actions[a.CommandName()] = a
	}

	return &controller{
		sessions:          p.Sessions,
		documents:         p.Documents,
		settings:          p.Settings,
		chat:              p.Chat,
		llm:               p.LLM,
		ideGateway:        p.IdeGateway,
		telemetry:         p.Telemetry,
		activityLog:       p.ActivityLog,
		logger:            p.Logger.With("plugin", _nameKey),
		config:            cfg,
		actions:           actions,
		pendingActionRuns: newPendingActionRunStore(),
		pendingCmds:       make(map[protocol.ProgressToken]context.CancelFunc),
	}, nil
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error) {
	priorities := map[string]ghostlineplugin.Priority{
		protocol.MethodInitialize:              ghostlineplugin.PriorityRegular,
		protocol.MethodTextDocumentCodeAction:  ghostlineplugin.PriorityRegular,
		protocol.MethodWorkspaceExecuteCommand: ghostlineplugin.PriorityAsync,
		protocol.MethodWorkDoneProgressCancel:  ghostlineplugin.PriorityRegular,
		ghostlineplugin.MethodEndSession:       ghostlineplugin.PriorityRegular,
	}

	methods := &ghostlineplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize:             c.initialize,
		CodeAction:             c.codeAction,
		ExecuteCommand:         c.executeCommand,
		WorkDoneProgressCancel: c.workDoneProgressCancel,
		EndSession:             c.endSession,
	}

	return ghostlineplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	kinds := make([]protocol.CodeActionKind, 0, len(action.SupportedCodeActionKinds))
	for kind := range action.SupportedCodeActionKinds {
		kinds = append(kinds, kind)
	}
	if err := mapper.InitializeResultAppendCodeActionProvider(result, &protocol.CodeActionOptions{CodeActionKinds: kinds}); err != nil {
		return fmt.Errorf("failed to append CodeActionProvider: %w", err)
	}

	commands := make([]string, 0, len(allActions))
	for _, a := range allActions {
		commands = append(commands, a.CommandName())
	}
	if err := mapper.InitializeResultAppendExecuteCommandProvider(result, &protocol.ExecuteCommandOptions{Commands: commands}); err != nil {
		return fmt.Errorf("failed to append ExecuteCommandProvider: %w", err)
	}
	return nil
}

func (c *controller) codeAction(ctx context.Context, params *protocol.CodeActionParams, result *[]protocol.CodeAction) error {
	args := entity.ActionArgs{
		URI:         params.TextDocument.URI,
		Range:       params.Range,
		Diagnostics: params.Context.Diagnostics,
	}
	for _, a := range allActions {
		if !a.IsRelevant(params) || !kindRequested(a.Kind(), params.Context.Only) {
			continue
		}
		*result = append(*result, mapper.NewCodeAction(a.Title(), a.CommandName(), a.Kind(), args))
	}
	return nil
}

func (c *controller) executeCommand(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	currentAction, ok := c.actions[params.Command]
	if !ok {
		return nil
	}

	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("getting session for action: %w", err)
	}

	var args entity.ActionArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err != nil {
		return err
	}
	argsToken, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding action arguments: %w", err)
	}

	progressToken := c.pendingActionRuns.Start(s.UUID, params.Command, string(argsToken))
	if progressToken == nil {
		c.logger.Infof("%s is already running for these arguments", params.Command)
		return nil
	}
	defer c.pendingActionRuns.Finish(s.UUID, params.Command, string(argsToken))

	executeParams, err := c.prepare(ctx, args, progressToken)
	if err != nil {
		var notFound *ghostlineerrors.DocumentNotFoundError
		if errors.As(err, &notFound) {
			return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
				Type:    protocol.MessageTypeWarning,
				Message: fmt.Sprintf("%s is not open.", args.URI),
			})
		}
		return err
	}
	if strings.TrimSpace(executeParams.Selection) == "" {
		return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: "Select some code to run this action on.",
		})
	}

	progressInfo := currentAction.ProvideWorkDoneProgressParams(args)
	c.startWorkDoneProgressMessage(ctx, progressToken, progressInfo)
	defer c.endWorkDoneProgressMessage(ctx, progressToken, progressInfo)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cmdMu.Lock()
	c.pendingCmds[*progressToken] = cancel
	c.cmdMu.Unlock()
	defer func() {
		c.cmdMu.Lock()
		delete(c.pendingCmds, *progressToken)
		c.cmdMu.Unlock()
	}()

	c.telemetry.Inc(telemetry.MetricActions)
	err = currentAction.Execute(ctx, executeParams, args)
	switch {
	case errors.Is(err, context.Canceled):
		c.logger.Infof("%s was canceled", params.Command)
		c.activityLog.Info("action canceled", "command", params.Command, "uri", args.URI)
		return nil
	case err != nil:
		c.activityLog.Error("action", err, "command", params.Command, "uri", args.URI)
		return err
	}
	c.activityLog.Info("action", "command", params.Command, "uri", args.URI)
	return nil
}

// prepare collects the document, selection and settings an action runs with.
func (c *controller) prepare(ctx context.Context, args entity.ActionArgs, progressToken *protocol.ProgressToken) (*action.ExecuteParams, error) {
	doc, err := c.documents.GetTextDocument(ctx, protocol.TextDocumentIdentifier{URI: args.URI})
	if err != nil {
		return nil, err
	}
	current, err := c.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &action.ExecuteParams{
		IdeGateway:    c.ideGateway,
		LLM:           c.llm,
		Chat:          c.chat,
		Telemetry:     c.telemetry,
		Settings:      current,
		Config:        c.config,
		ProgressToken: progressToken,
		Document:      doc,
		Selection:     mapper.RangeToText(doc.Text, args.Range),
	}, nil
}

func (c *controller) workDoneProgressCancel(ctx context.Context, params *protocol.WorkDoneProgressCancelParams) error {
	c.logger.Infof("Received cancel request for token: %s", params.Token)
	c.cancelPendingCmd(params.Token)
	return nil
}

func (c *controller) endSession(ctx context.Context, id uuid.UUID) error {
	for _, token := range c.pendingActionRuns.SessionTokens(id) {
		c.cancelPendingCmd(*token)
	}
	c.pendingActionRuns.DeleteSession(id)
	return nil
}

// startWorkDoneProgressMessage starts a cancellable progress message for the run.
func (c *controller) startWorkDoneProgressMessage(ctx context.Context, token *protocol.ProgressToken, info *action.ProgressInfoParams) {
	if info == nil {
		return
	}

	if err := c.ideGateway.WorkDoneProgressCreate(ctx, &protocol.WorkDoneProgressCreateParams{Token: *token}); err != nil {
		c.logger.Warnf("creating work done progress: %v", err)
	}
	if err := c.ideGateway.Progress(ctx, &protocol.ProgressParams{
		Token: *token,
		Value: protocol.WorkDoneProgressBegin{
			Kind:        protocol.WorkDoneProgressKindBegin,
			Title:       info.Title,
			Message:     info.Message,
			Cancellable: true,
		},
	}); err != nil {
		c.logger.Warnf("starting work done progress: %v", err)
	}
}

func (c *controller) endWorkDoneProgressMessage(ctx context.Context, token *protocol.ProgressToken, info *action.ProgressInfoParams) {
	if info == nil {
		return
	}

	if err := c.ideGateway.Progress(ctx, &protocol.ProgressParams{
		Token: *token,
		Value: protocol.WorkDoneProgressEnd{
			Kind: protocol.WorkDoneProgressKindEnd,
		},
	}); err != nil {
		c.logger.Warnf("ending work done progress: %v", err)
	}
}

func (c *controller) cancelPendingCmd(token protocol.ProgressToken) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	cancelCmd, ok := c.pendingCmds[token]
	if !ok {
		c.logger.Infof("no pending command found for token: %s", token)
		return
	}
	delete(c.pendingCmds, token)
	cancelCmd()
}

// kindRequested reports whether kind is covered by the client's filter. An empty filter allows everything.
func kindRequested(kind protocol.CodeActionKind, only []protocol.CodeActionKind) bool {
	if len(only) == 0 {
		return true
	}
	for _, o := range only {
		if kind == o || strings.HasPrefix(string(kind), string(o)+".") {
			return true
		}
	}
	return false
}
