// Package ghostlinedaemon implements the ghostline-daemon business logic.
package ghostlinedaemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	aiactions "github.com/ghostline-dev/ghostline/src/ghostline/controller/ai-actions"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/chat"
	docsync "github.com/ghostline-dev/ghostline/src/ghostline/controller/doc-sync"
	inlinecompletion "github.com/ghostline-dev/ghostline/src/ghostline/controller/inline-completion"
	"github.com/ghostline-dev/ghostline/src/ghostline/controller/settings"
	userguidance "github.com/ghostline-dev/ghostline/src/ghostline/controller/user-guidance"
	workspacecontext "github.com/ghostline-dev/ghostline/src/ghostline/controller/workspace-context"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	workspaceutils "github.com/ghostline-dev/ghostline/src/ghostline/internal/workspace-utils"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session"
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/atomic"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination ghostlinedaemonmock/ghostline_daemon_mock.go -package ghostlinedaemonmock . Controller

const (
	// Error templates
	_errBadPluginCall       = "calling plugin: %s"
	_errPluginReturnedError = "plugin %q returned error: %s"

	// Configuration keys
	_idleTimeoutMinutesKey = "idleTimeoutMinutes"
	_pluginsKey            = "ghostlinePlugins"

	// Async plugin methods include model calls and workspace indexing.
	_contextTimeoutSecondsAsync = 600
)

// Controller orchestrates the business logic for each request.
type Controller interface {
	// LSP Methods defined per protocol.
	Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error)
	Initialized(ctx context.Context, params *protocol.InitializedParams) error
	Shutdown(ctx context.Context) error
	Exit(ctx context.Context) error

	// Document related methods.
	DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error
	DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error
	DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error
	DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error

	// Completion related methods.
	CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error)
	InlineCompletion(ctx context.Context, params *entity.InlineCompletionParams) (*entity.InlineCompletionList, error)

	// Workspace related methods.
	ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error)
	DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error

	// Window related methods.
	WorkDoneProgressCancel(ctx context.Context, params *protocol.WorkDoneProgressCancelParams) error

	// Custom methods for use within this service.
	RequestFullShutdown(ctx context.Context) error
	InitSession(ctx context.Context, conn *jsonrpc2.Conn) (uuid.UUID, error)
	EndSession(ctx context.Context, uuid uuid.UUID) error
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Shutdowner     fx.Shutdowner
	Sessions       session.Repository
	IdeGateway     ideclient.Gateway
	Logger         *zap.SugaredLogger
	Config         config.Provider
	WorkspaceUtils workspaceutils.WorkspaceUtils

	PluginDocSync          docsync.Controller
	PluginSettings         settings.Controller
	PluginWorkspaceContext workspacecontext.Controller
	PluginInlineCompletion inlinecompletion.Controller
	PluginChat             chat.Controller
	PluginAIActions        aiactions.Controller
	PluginUserGuidance     userguidance.Controller
}

type controller struct {
	sessions           session.Repository
	shutdowner         fx.Shutdowner
	fullShutdown       atomic.Bool
	idleTimer          *time.Timer
	idleTimerMu        sync.Mutex
	idleTimeoutMinutes time.Duration
	logger             *zap.SugaredLogger
	ideGateway         ideclient.Gateway
	pluginMethods      map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods
	pluginMethodsMu    sync.RWMutex
	pluginConfig       map[string]bool
	pluginsAll         []ghostlineplugin.Plugin
	wg                 sync.WaitGroup
	workspaceUtils     workspaceutils.WorkspaceUtils
}

// New constructs a new top-level controller for the service.
func New(p Params) (Controller, error) {
	ctx := context.Background()

	var timeoutMinutesRaw int64
	if err := p.Config.Get(_idleTimeoutMinutesKey).Populate(&timeoutMinutesRaw); err != nil || timeoutMinutesRaw == 0 {
		return nil, fmt.Errorf("unable to get idle timeout from config: %w", err)
	}
	var pluginConfig map[string]bool
	if err := p.Config.Get(_pluginsKey).Populate(&pluginConfig); err != nil {
		return nil, fmt.Errorf("unable to get plugin keys from config: %w", err)
	}

	// When creating a new plugin, add it as a dependency in Params, then add it to the list of available plugins here.
	// Within a priority group, plugins run in this order.
	availablePlugins := []ghostlineplugin.Plugin{
		p.PluginDocSync,
		p.PluginSettings,
		p.PluginWorkspaceContext,
		p.PluginInlineCompletion,
		p.PluginChat,
		p.PluginAIActions,
		p.PluginUserGuidance,
	}

	c := &controller{
		sessions:       p.Sessions,
		shutdowner:     p.Shutdowner,
		logger:         p.Logger,
		ideGateway:     p.IdeGateway,
		workspaceUtils: p.WorkspaceUtils,

		idleTimeoutMinutes: time.Duration(timeoutMinutesRaw) * time.Minute,
		pluginMethods:      map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{},
		pluginConfig:       pluginConfig,
		pluginsAll:         availablePlugins,
	}
	c.refreshIdleTimer(ctx)

	return c, nil
}

func (c *controller) registerSessionPlugins(ctx context.Context) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return fmt.Errorf("getting session from context: %w", err)
	}

	enabledPlugins := []ghostlineplugin.PluginInfo{}
	for _, plugin := range c.pluginsAll {
		if plugin == nil {
			continue
		}
		info, err := plugin.StartupInfo(ctx)
		if err != nil {
			return fmt.Errorf("getting plugin startup info: %w", err)
		}

		if isEnabled := c.pluginConfig[info.NameKey]; isEnabled {
			c.logger.Infow("plugin registration", "plugin", info.NameKey, "status", "enabled")
			enabledPlugins = append(enabledPlugins, info)
		} else {
			c.logger.Infow("plugin registration", "plugin", info.NameKey, "status", "disabled")
		}
	}

	methods, err := mapper.PluginInfoToRuntimePrioritizedMethods(enabledPlugins)
	if err != nil {
		return fmt.Errorf("prioritizing plugin methods: %w", err)
	}

	c.pluginMethodsMu.Lock()
	defer c.pluginMethodsMu.Unlock()
	c.pluginMethods[s.UUID] = methods
	return nil
}

// executePluginMethods will execute modules in the order defined for the given method.
// The caller is responsible for defining and providing a handlerSync and handlerAsync function, which should call the corresponding method with proper arguments.
// The same function may be passed in for both sync and async if no difference is needed.
func (c *controller) executePluginMethods(ctx context.Context, method string, handlerSync func(ctx context.Context, m *ghostlineplugin.Methods), handlerAsync func(ctx context.Context, m *ghostlineplugin.Methods)) error {
	if handlerSync == nil || handlerAsync == nil {
		return fmt.Errorf("handlers cannot be nil")
	}

	id, err := mapper.ContextToSessionUUID(ctx)
	if err != nil {
		return fmt.Errorf("getting session from context: %w", err)
	}

	c.pluginMethodsMu.RLock()
	sessionMethods, ok := c.pluginMethods[id]
	var methodLists ghostlineplugin.MethodLists
	if ok {
		methodLists, ok = sessionMethods[method]
	}
	c.pluginMethodsMu.RUnlock()
	if !ok {
		// No need to execute if this method has no registered plugins.
		return nil
	}

	for _, current := range methodLists.Sync {
		handlerSync(ctx, current)
	}

	if len(methodLists.Async) == 0 {
		return nil
	}

	// Outer goroutine will spawn a goroutine for each asynchronous plugin method, then wait for them to complete with a timeout.
	// Plugins that implement asynchronous methods are responsible for respecting the context timeout or cancellation signal.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		// New context with its own timeout for asynchronous calls.
		asyncCtx := context.WithValue(context.Background(), entity.SessionContextKey, ctx.Value(entity.SessionContextKey))
		asyncCtx, cancel := context.WithTimeout(asyncCtx, _contextTimeoutSecondsAsync*time.Second)
		defer cancel()

		// Spawn a separate goroutine for each method's context, then wait for them all to complete.
		var innerWg sync.WaitGroup
		for _, current := range methodLists.Async {
			currentMethods := current
			innerWg.Add(1)
			go func() {
				defer innerWg.Done()
				handlerAsync(asyncCtx, currentMethods)
			}()
		}

		innerWg.Wait()
	}()

	return nil
}

func (c *controller) hasSessionPlugins(id uuid.UUID) bool {
	c.pluginMethodsMu.RLock()
	defer c.pluginMethodsMu.RUnlock()

	_, ok := c.pluginMethods[id]
	return ok
}

func (c *controller) removeSessionPlugins(id uuid.UUID) {
	c.pluginMethodsMu.Lock()
	defer c.pluginMethodsMu.Unlock()

	delete(c.pluginMethods, id)
}
