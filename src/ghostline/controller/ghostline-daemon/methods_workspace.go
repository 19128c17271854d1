package ghostlinedaemon

import (
	"context"

	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	"go.lsp.dev/protocol"
)

func (c *controller) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (interface{}, error) {
	call := func(ctx context.Context, m *ghostlineplugin.Methods) {
		if err := m.ExecuteCommand(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return nil, c.executePluginMethods(ctx, protocol.MethodWorkspaceExecuteCommand, call, call)
}

func (c *controller) DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	call := func(ctx context.Context, m *ghostlineplugin.Methods) {
		if err := m.DidChangeConfiguration(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return c.executePluginMethods(ctx, protocol.MethodWorkspaceDidChangeConfiguration, call, call)
}
