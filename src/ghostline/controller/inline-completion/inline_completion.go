package inlinecompletion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	docsync "github.com/ghostline-dev/ghostline/src/ghostline/controller/doc-sync"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/settings"
	workspacecontext "github.com/ghostline-dev/ghostline/src/ghostline/controller/workspace-context"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/clock"
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

const (
	_nameKey   = "inline-completion"
	_configKey = "completion"

	_defaultCacheTTL    = 30 * time.Second
	_defaultMinInterval = time.Second
	_defaultLineCap     = 200
	_defaultMaxTokens   = 256
)

var _commands = []string{
	entity.CommandInsertSuggestion,
	entity.CommandToggleInlineCompletions,
	entity.CommandToggleAgentMode,
}

// Controller serves inline completions and agent mode suggestions.
type Controller interface {
	StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error)
}

// Params are inbound parameters to initialize a new plugin.
type Params struct {
	fx.In

	Sessions         session.Repository
	Documents        docsync.Controller
	Settings         settings.Controller
	WorkspaceContext workspacecontext.Controller
	LLM              llm.Gateway
	IdeGateway       ideclient.Gateway
	Telemetry        telemetry.Telemetry
	ActivityLog      logfilewriter.ActivityLog
	Config           config.Provider
	Logger           *zap.SugaredLogger
	Clock            clock.Clock `optional:"true"`
}

type completionConfig struct {
	CacheTTLSeconds        int     `yaml:"cacheTTLSeconds"`
	MinIntervalMs          int     `yaml:"minIntervalMs"`
	ContextLineCap         int     `yaml:"contextLineCap"`
	MaxTokens              int     `yaml:"maxTokens"`
	Temperature            float64 `yaml:"temperature"`
	WorkspaceContextTokens int     `yaml:"workspaceContextTokens"`
}

type controller struct {
	sessions         session.Repository
	documents        docsync.Controller
	settings         settings.Controller
	workspaceContext workspacecontext.Controller
	llm              llm.Gateway
	ideGateway       ideclient.Gateway
	telemetry        telemetry.Telemetry
	activityLog      logfilewriter.ActivityLog
	logger           *zap.SugaredLogger

	config      completionConfig
	coordinator *coordinator

	agents   map[uuid.UUID]*agentSession
	agentsMu sync.Mutex
}

// agentSession is the agent mode subscription of one session and the suggestions it has in flight.
type agentSession struct {
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

func newAgentSession(ctx context.Context) *agentSession {
	agentCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &agentSession{ctx: agentCtx, cancel: cancel}
}

// begin registers a suggestion, unless the session has stopped.
func (a *agentSession) begin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return false
	}
	a.running.Add(1)
	return true
}

// stop unsubscribes from document changes, drops debounced suggestions and waits for the issued ones.
func (a *agentSession) stop() {
	a.unsubscribe()
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	a.cancel()
	a.running.Wait()
}

// New creates an inline completion controller.
func New(p Params) (Controller, error) {
	cfg := completionConfig{}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.ContextLineCap <= 0 {
		cfg.ContextLineCap = _defaultLineCap
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = _defaultMaxTokens
	}

	cacheTTL := _defaultCacheTTL
	if cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	minInterval := _defaultMinInterval
	if cfg.MinIntervalMs > 0 {
		minInterval = time.Duration(cfg.MinIntervalMs) * time.Millisecond
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &controller{
		sessions:         p.Sessions,
		documents:        p.Documents,
		settings:         p.Settings,
		workspaceContext: p.WorkspaceContext,
		llm:              p.LLM,
		ideGateway:       p.IdeGateway,
		telemetry:        p.Telemetry,
		activityLog:      p.ActivityLog,
		logger:           p.Logger.With("plugin", _nameKey),
		config:           cfg,
		coordinator:      newCoordinator(clk, cacheTTL, minInterval),
		agents:           make(map[uuid.UUID]*agentSession),
	}, nil
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error) {
	priorities := map[string]ghostlineplugin.Priority{
		protocol.MethodInitialize:                      ghostlineplugin.PriorityRegular,
		protocol.MethodWorkspaceDidChangeConfiguration: ghostlineplugin.PriorityRegular,
		protocol.MethodWorkspaceExecuteCommand:         ghostlineplugin.PriorityAsync,
		entity.MethodTextDocumentInlineCompletion:      ghostlineplugin.PriorityRegular,
		ghostlineplugin.MethodEndSession:               ghostlineplugin.PriorityRegular,
	}

	methods := &ghostlineplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize:             c.initialize,
		DidChangeConfiguration: c.didChangeConfiguration,
		ExecuteCommand:         c.executeCommand,
		InlineCompletion:       c.inlineCompletion,
		EndSession:             c.endSession,
	}

	return ghostlineplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	if err := mapper.InitializeResultEnsureInlineCompletionProvider(result); err != nil {
		return fmt.Errorf("failed to append inline completion provider: %w", err)
	}
	if err := mapper.InitializeResultAppendExecuteCommandProvider(result, &protocol.ExecuteCommandOptions{Commands: _commands}); err != nil {
		return fmt.Errorf("failed to append ExecuteCommandProvider: %w", err)
	}
	return c.syncAgentMode(ctx)
}

// didChangeConfiguration runs after the settings controller has merged the change.
func (c *controller) didChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	return c.syncAgentMode(ctx)
}

func (c *controller) endSession(ctx context.Context, id uuid.UUID) error {
	c.agentsMu.Lock()
	agent, ok := c.agents[id]
	delete(c.agents, id)
	c.agentsMu.Unlock()

	if ok {
		agent.stop()
	}
	c.coordinator.forgetSession(id)
	return nil
}

func (c *controller) inlineCompletion(ctx context.Context, params *entity.InlineCompletionParams, result *entity.InlineCompletionList) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	result.Items = append(result.Items, c.complete(ctx, s, params, completionDelay)...)
	return nil
}

// completionDelay debounces completions requested by the editor.
func completionDelay(s entity.Settings) time.Duration {
	return time.Duration(s.CompletionDelayMs) * time.Millisecond
}

// typingDebounce debounces the suggestions agent mode requests on every edit.
func typingDebounce(s entity.Settings) time.Duration {
	return time.Duration(s.TypingDebounceMs) * time.Millisecond
}

// complete resolves a completion request once no newer request for the document arrives within the delay.
// Every failure resolves to no items so typing is never interrupted.
func (c *controller) complete(ctx context.Context, s *entity.Session, params *entity.InlineCompletionParams, delayOf func(entity.Settings) time.Duration) []entity.InlineCompletionItem {
	c.telemetry.Inc(telemetry.MetricRequests)

	current, err := c.settings.Get(ctx)
	if err != nil {
		c.logger.Warnf("reading settings: %v", err)
		return nil
	}
	if !current.EnableInlineCompletions {
		return c.skip(params, "disabled")
	}

	doc, err := c.documents.GetTextDocument(ctx, params.TextDocument)
	if err != nil {
		c.logger.Debugf("no document for completion: %v", err)
		return nil
	}
	if current.IsLanguageExcluded(string(doc.LanguageID)) {
		return c.skip(params, "excluded language")
	}
	if reason := skipReason(params, doc.Text); reason != "" {
		return c.skip(params, reason)
	}
	if belowContentThreshold(mapper.LineAt(doc.Text, params.Position.Line), mapper.PrefixAt(doc.Text, params.Position)) {
		return c.skip(params, "not enough content")
	}

	fetch := func(ctx context.Context) ([]entity.InlineCompletionItem, error) {
		return c.fetch(ctx, doc, params.Position, current)
	}

	key := requestKey(s.UUID, params.TextDocument.URI, params.Position)
	items, outcome, err := c.coordinator.complete(ctx, key, documentKey(s.UUID, params.TextDocument.URI), delayOf(current), fetch)
	if err != nil {
		c.telemetry.Inc(telemetry.MetricErrors)
		c.logger.Warnf("inline completion for %s failed: %v", params.TextDocument.URI, err)
		c.activityLog.Error("inline completion", err, "uri", params.TextDocument.URI)
		return nil
	}

	switch outcome {
	case outcomeCached:
		c.telemetry.Inc(telemetry.MetricCacheHits)
	case outcomeJoined:
		c.telemetry.Inc(telemetry.MetricDedupJoins)
	case outcomeRateLimited:
		c.telemetry.Inc(telemetry.MetricRateLimited)
	}
	return items
}

func (c *controller) skip(params *entity.InlineCompletionParams, reason string) []entity.InlineCompletionItem {
	c.telemetry.Inc(telemetry.MetricSkipped)
	c.logger.Debugf("skipping completion at %s:%d:%d: %s", params.TextDocument.URI, params.Position.Line, params.Position.Character, reason)
	return nil
}

func (c *controller) fetch(ctx context.Context, doc protocol.TextDocumentItem, pos protocol.Position, current entity.Settings) ([]entity.InlineCompletionItem, error) {
	dc := collectContext(doc.Text, pos, current.LanguageProfile(string(doc.LanguageID)), c.config.ContextLineCap)

	workspace := ""
	if c.config.WorkspaceContextTokens > 0 {
		assembled, err := c.workspaceContext.Assemble(ctx, dc.LinePrefix, c.config.WorkspaceContextTokens)
		if err != nil {
			c.logger.Warnf("assembling workspace context: %v", err)
		}
		workspace = assembled
	}

	req := buildRequest(doc, dc, workspace, c.config)
	req.CustomEndpoint = current.CustomEndpoint
	result := c.llm.CallModel(ctx, current.ModelID(), req)
	if result.Failed() {
		return nil, errors.New(result.Error)
	}
	c.telemetry.RecordUsage(result.Usage)

	text := postProcess(result.Text, dc.LinePrefix)
	if text == "" {
		return nil, nil
	}
	return []entity.InlineCompletionItem{{
		InsertText: text,
		Range:      &protocol.Range{Start: pos, End: pos},
	}}, nil
}

func (c *controller) executeCommand(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	switch params.Command {
	case entity.CommandInsertSuggestion:
		return c.insertSuggestion(ctx, params)
	case entity.CommandToggleInlineCompletions:
		return c.toggleInlineCompletions(ctx)
	case entity.CommandToggleAgentMode:
		return c.toggleAgentMode(ctx)
	}
	return nil
}

// insertSuggestion inserts the given text, or a freshly requested completion, at the position.
func (c *controller) insertSuggestion(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	var args entity.InsertSuggestionArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err != nil {
		return err
	}

	text := args.Text
	if text == "" {
		s, err := c.sessions.GetFromContext(ctx)
		if err != nil {
			return err
		}
		items := c.complete(ctx, s, &entity.InlineCompletionParams{
			TextDocumentPositionParams: protocol.TextDocumentPositionParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: args.URI},
				Position:     args.Position,
			},
			Context: entity.InlineCompletionContext{TriggerKind: entity.InlineCompletionTriggerInvoked},
		}, completionDelay)
		if len(items) == 0 {
			return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
				Type:    protocol.MessageTypeInfo,
				Message: "No suggestion available at the cursor.",
			})
		}
		text = items[0].InsertText
	}

	edit := mapper.SingleEditToApplyWorkspaceEditParams("Insert suggestion", protocol.TextDocumentIdentifier{URI: args.URI}, protocol.Range{Start: args.Position, End: args.Position}, text)
	resp, err := c.ideGateway.ApplyEdit(ctx, edit)
	if err != nil {
		return fmt.Errorf("applying suggestion: %w", err)
	}
	if resp != nil && !resp.Applied {
		c.logger.Infof("suggestion was not applied: %s", resp.FailureReason)
	}
	return nil
}

func (c *controller) toggleInlineCompletions(ctx context.Context) error {
	updated, err := c.settings.Update(ctx, func(s *entity.Settings) {
		s.EnableInlineCompletions = !s.EnableInlineCompletions
	})
	if err != nil {
		return err
	}

	c.activityLog.Info("toggle inline completions", "enabled", updated.EnableInlineCompletions)
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: "Inline completions " + enabledLabel(updated.EnableInlineCompletions) + ".",
	})
}

func (c *controller) toggleAgentMode(ctx context.Context) error {
	updated, err := c.settings.Update(ctx, func(s *entity.Settings) {
		s.AgentMode = !s.AgentMode
	})
	if err != nil {
		return err
	}
	if err := c.syncAgentMode(ctx); err != nil {
		return err
	}

	c.activityLog.Info("toggle agent mode", "enabled", updated.AgentMode)
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: "Agent mode " + enabledLabel(updated.AgentMode) + ".",
	})
}

// syncAgentMode subscribes to or unsubscribes from document changes to match the session's agent mode setting.
func (c *controller) syncAgentMode(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}
	current, err := c.settings.Get(ctx)
	if err != nil {
		return err
	}

	c.agentsMu.Lock()
	agent, active := c.agents[s.UUID]
	switch {
	case current.AgentMode && !active:
		agent = newAgentSession(ctx)
		agent.unsubscribe = c.documents.Observe(ctx, s.UUID, c.agentObserver(s, agent))
		c.agents[s.UUID] = agent
	case !current.AgentMode && active:
		delete(c.agents, s.UUID)
	}
	c.agentsMu.Unlock()

	if active && !current.AgentMode {
		agent.stop()
	}
	return nil
}

// agentObserver requests a completion at the end of each edit, once typing has paused for the typing debounce,
// and pushes non-empty results to the editor.
func (c *controller) agentObserver(s *entity.Session, agent *agentSession) docsync.ChangeObserver {
	return func(_ context.Context, doc protocol.TextDocumentItem, changes []protocol.TextDocumentContentChangeEvent) {
		if len(changes) == 0 {
			return
		}
		last := changes[len(changes)-1]
		if last.Range == nil {
			// Full document replacement, no cursor position to complete at.
			return
		}
		pos := endOfInsert(last.Range.Start, last.Text)

		// Observers run inside didChange, the completion must not hold up the notification.
		if !agent.begin() {
			return
		}
		go func() {
			defer agent.running.Done()
			ctx := agent.ctx
			items := c.complete(ctx, s, &entity.InlineCompletionParams{
				TextDocumentPositionParams: protocol.TextDocumentPositionParams{
					TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI},
					Position:     pos,
				},
				Context: entity.InlineCompletionContext{TriggerKind: entity.InlineCompletionTriggerAutomatic},
			}, typingDebounce)
			if len(items) == 0 || ctx.Err() != nil {
				return
			}
			suggestion := entity.AgentSuggestion{URI: doc.URI, Position: pos, Items: items}
			if err := c.ideGateway.Notify(ctx, entity.NotificationAgentSuggestion, suggestion); err != nil {
				c.logger.Warnf("sending agent suggestion: %v", err)
			}
		}()
	}
}

// endOfInsert is the position just after text once it is inserted at start.
func endOfInsert(start protocol.Position, text string) protocol.Position {
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return protocol.Position{
			Line:      start.Line + uint32(strings.Count(text, "\n")),
			Character: uint32(len(utf16.Encode([]rune(text[i+1:])))),
		}
	}
	return protocol.Position{
		Line:      start.Line,
		Character: start.Character + uint32(len(utf16.Encode([]rune(text)))),
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
