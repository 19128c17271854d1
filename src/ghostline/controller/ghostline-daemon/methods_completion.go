package ghostlinedaemon

import (
	"context"
	"fmt"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	"go.lsp.dev/protocol"
)

func (c *controller) CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	result := []protocol.CodeAction{}

	callSync := func(ctx context.Context, m *ghostlineplugin.Methods) {
		if err := m.CodeAction(ctx, params, &result); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	callAsync := func(ctx context.Context, m *ghostlineplugin.Methods) {
		if err := m.CodeAction(ctx, params, nil); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}

	if err := c.executePluginMethods(ctx, protocol.MethodTextDocumentCodeAction, callSync, callAsync); err != nil {
		return nil, fmt.Errorf(_errBadPluginCall, err)
	}

	return result, nil
}

// InlineCompletion collects ghost text suggestions. An empty list is a valid answer.
func (c *controller) InlineCompletion(ctx context.Context, params *entity.InlineCompletionParams) (*entity.InlineCompletionList, error) {
	result := &entity.InlineCompletionList{Items: []entity.InlineCompletionItem{}}

	callSync := func(ctx context.Context, m *ghostlineplugin.Methods) {
		if err := m.InlineCompletion(ctx, params, result); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}
	callAsync := func(ctx context.Context, m *ghostlineplugin.Methods) {
		if err := m.InlineCompletion(ctx, params, nil); err != nil {
			c.logger.Errorf(_errPluginReturnedError, m.PluginNameKey, err)
		}
	}

	if err := c.executePluginMethods(ctx, entity.MethodTextDocumentInlineCompletion, callSync, callAsync); err != nil {
		return nil, fmt.Errorf(_errBadPluginCall, err)
	}

	return result, nil
}
