package ghostlinedaemon

import (
	"context"

	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	"go.lsp.dev/protocol"
)

func (c *controller) WorkDoneProgressCancel(ctx context.Context, params *protocol.WorkDoneProgressCancelParams) error {
	call := func(ctx context.Context, m *ghostlineplugin.Methods) {
		if err := m.WorkDoneProgressCancel(ctx, params); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	return c.executePluginMethods(ctx, protocol.MethodWorkDoneProgressCancel, call, call)
}
