package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	ideclient "github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/logfilewriter"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/telemetry"
	"github.com/ghostline-dev/ghostline/src/ghostline/mapper"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/secret"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session"
	"github.com/gofrs/uuid"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -destination settingsmock/settings_mock.go -package settingsmock . Controller

const (
	_nameKey          = "settings"
	_configKeyDefault = "settings"
)

var _commands = []string{
	entity.CommandSetAPIKey,
	entity.CommandRemoveAPIKey,
	entity.CommandCheckAPIKey,
	entity.CommandShowTelemetry,
}

// Controller keeps the settings of each session and owns the API key and telemetry commands.
type Controller interface {
	StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error)
	// Get returns a copy of the settings for the session in ctx.
	Get(ctx context.Context) (entity.Settings, error)
	// Update applies fn to the session's settings and returns the result.
	Update(ctx context.Context, fn func(s *entity.Settings)) (entity.Settings, error)
}

// Params are inbound parameters to initialize a new plugin.
type Params struct {
	fx.In

	Sessions    session.Repository
	IdeGateway  ideclient.Gateway
	Secrets     secret.Repository
	Telemetry   telemetry.Telemetry
	ActivityLog logfilewriter.ActivityLog
	Config      config.Provider
	Logger      *zap.SugaredLogger
}

type controller struct {
	sessions    session.Repository
	ideGateway  ideclient.Gateway
	secrets     secret.Repository
	telemetry   telemetry.Telemetry
	activityLog logfilewriter.ActivityLog
	logger      *zap.SugaredLogger

	defaults   entity.Settings
	settings   map[uuid.UUID]entity.Settings
	settingsMu sync.RWMutex
}

// New creates a settings controller with defaults read from the "settings" config block.
func New(p Params) (Controller, error) {
	var defaults entity.Settings
	if err := p.Config.Get(_configKeyDefault).Populate(&defaults); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyDefault, err)
	}

	return &controller{
		sessions:    p.Sessions,
		ideGateway:  p.IdeGateway,
		secrets:     p.Secrets,
		telemetry:   p.Telemetry,
		activityLog: p.ActivityLog,
		logger:      p.Logger.With("plugin", _nameKey),
		defaults:    defaults,
		settings:    make(map[uuid.UUID]entity.Settings),
	}, nil
}

// StartupInfo returns PluginInfo for this controller.
func (c *controller) StartupInfo(ctx context.Context) (ghostlineplugin.PluginInfo, error) {
	priorities := map[string]ghostlineplugin.Priority{
		protocol.MethodInitialize:                      ghostlineplugin.PriorityHigh,
		protocol.MethodWorkspaceDidChangeConfiguration: ghostlineplugin.PriorityHigh,
		protocol.MethodWorkspaceExecuteCommand:         ghostlineplugin.PriorityRegular,
		ghostlineplugin.MethodEndSession:               ghostlineplugin.PriorityRegular,
	}

	methods := &ghostlineplugin.Methods{
		PluginNameKey: _nameKey,

		Initialize:             c.initialize,
		DidChangeConfiguration: c.didChangeConfiguration,
		ExecuteCommand:         c.executeCommand,
		EndSession:             c.endSession,
	}

	return ghostlineplugin.PluginInfo{
		Priorities: priorities,
		Methods:    methods,
		NameKey:    _nameKey,
	}, nil
}

func (c *controller) Get(ctx context.Context) (entity.Settings, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return entity.Settings{}, err
	}

	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	current, ok := c.settings[s.UUID]
	if !ok {
		return c.defaults.Clone(), nil
	}
	return current.Clone(), nil
}

func (c *controller) Update(ctx context.Context, fn func(s *entity.Settings)) (entity.Settings, error) {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return entity.Settings{}, err
	}

	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	current, ok := c.settings[s.UUID]
	if !ok {
		current = c.defaults.Clone()
	}
	fn(&current)
	c.settings[s.UUID] = current
	return current.Clone(), nil
}

// initialize merges initializationOptions over the configured defaults.
func (c *controller) initialize(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	merged, err := mapper.ApplySettingsSection(c.defaults, mapper.SettingsSectionFromObject(params.InitializationOptions))
	if err != nil {
		// Invalid client settings are not fatal, the session starts with defaults.
		c.logger.Warnf("ignoring invalid initialization options: %v", err)
		merged = c.defaults.Clone()
	}

	c.settingsMu.Lock()
	c.settings[s.UUID] = merged
	c.settingsMu.Unlock()

	if err := mapper.InitializeResultAppendExecuteCommandProvider(result, &protocol.ExecuteCommandOptions{Commands: _commands}); err != nil {
		return fmt.Errorf("failed to append ExecuteCommandProvider: %w", err)
	}
	return nil
}

// didChangeConfiguration merges changed settings over the session's current settings.
func (c *controller) didChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	s, err := c.sessions.GetFromContext(ctx)
	if err != nil {
		return err
	}

	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	current, ok := c.settings[s.UUID]
	if !ok {
		current = c.defaults.Clone()
	}
	merged, err := mapper.ApplySettingsSection(current, mapper.SettingsSectionFromObject(params.Settings))
	if err != nil {
		return fmt.Errorf("applying configuration change: %w", err)
	}
	c.settings[s.UUID] = merged
	c.activityLog.Info("settings updated", "model", merged.ModelID(), "inline", merged.EnableInlineCompletions)
	return nil
}

func (c *controller) endSession(ctx context.Context, id uuid.UUID) error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	delete(c.settings, id)
	return nil
}

func (c *controller) executeCommand(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	switch params.Command {
	case entity.CommandSetAPIKey:
		return c.setAPIKey(ctx, params)
	case entity.CommandRemoveAPIKey:
		return c.removeAPIKey(ctx, params)
	case entity.CommandCheckAPIKey:
		return c.checkAPIKey(ctx, params)
	case entity.CommandShowTelemetry:
		return c.showTelemetry(ctx)
	}
	return nil
}

func (c *controller) setAPIKey(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	var args entity.APIKeyArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err != nil {
		return err
	}
	provider, err := entity.ParseProvider(string(args.Provider))
	if err != nil {
		return c.warn(ctx, err.Error())
	}

	if err := c.secrets.Set(ctx, provider, args.Key); err != nil {
		c.activityLog.Error("set api key", err, "provider", provider)
		return c.warn(ctx, fmt.Sprintf("Unable to save API key for %s: %v", provider, err))
	}

	c.activityLog.Info("set api key", "provider", provider)
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: fmt.Sprintf("API key for %s saved.", provider),
	})
}

func (c *controller) removeAPIKey(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	var args entity.APIKeyArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err != nil {
		return err
	}
	provider, err := entity.ParseProvider(string(args.Provider))
	if err != nil {
		return c.warn(ctx, err.Error())
	}

	if err := c.secrets.Delete(ctx, provider); err != nil {
		c.activityLog.Error("remove api key", err, "provider", provider)
		return c.warn(ctx, fmt.Sprintf("Unable to remove API key for %s: %v", provider, err))
	}

	c.activityLog.Info("remove api key", "provider", provider)
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: fmt.Sprintf("API key for %s removed.", provider),
	})
}

// checkAPIKey reports which providers have a key, and where it comes from. Key values are never shown.
func (c *controller) checkAPIKey(ctx context.Context, params *protocol.ExecuteCommandParams) error {
	providers := entity.Providers
	var args entity.APIKeyArgs
	if err := mapper.ExecuteCommandParamsToArgs(params, &args); err == nil && args.Provider != "" {
		provider, err := entity.ParseProvider(string(args.Provider))
		if err != nil {
			return c.warn(ctx, err.Error())
		}
		providers = []entity.ProviderName{provider}
	}

	msg := ""
	for i, provider := range providers {
		source, err := c.secrets.Source(ctx, provider)
		if err != nil {
			return fmt.Errorf("checking api key for %s: %w", provider, err)
		}
		if i > 0 {
			msg += ", "
		}
		if source == secret.SourceNone {
			msg += fmt.Sprintf("%s: not set", provider)
		} else {
			msg += fmt.Sprintf("%s: set (%s)", provider, source)
		}
	}

	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: "API keys: " + msg,
	})
}

func (c *controller) showTelemetry(ctx context.Context) error {
	snapshot := c.telemetry.Snapshot()
	if err := c.ideGateway.Notify(ctx, entity.NotificationTelemetry, snapshot); err != nil {
		c.logger.Warnf("unable to send telemetry to panel: %v", err)
	}

	writer, err := c.ideGateway.GetLogMessageWriter(ctx, "telemetry")
	if err != nil {
		return err
	}
	_, err = writer.Write([]byte(snapshot.String()))
	return err
}

func (c *controller) warn(ctx context.Context, msg string) error {
	return c.ideGateway.ShowMessage(ctx, &protocol.ShowMessageParams{
		Type:    protocol.MessageTypeWarning,
		Message: msg,
	})
}
