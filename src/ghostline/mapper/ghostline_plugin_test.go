package mapper

import (
	"context"
	"fmt"
	"testing"

	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestPluginInfoToRuntimePrioritizedMethods(t *testing.T) {
	methodExamples := make([]*ghostlineplugin.Methods, 3)
	for i := 0; i < 3; i++ {
		methodExamples[i] = &ghostlineplugin.Methods{
			PluginNameKey: fmt.Sprintf("test-plugin-%v", i),
			DidOpen: func(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
				return nil
			},
		}
	}

	t.Run("valid plugins", func(t *testing.T) {
		priorities := []ghostlineplugin.Priority{ghostlineplugin.PriorityRegular, ghostlineplugin.PriorityAsync, ghostlineplugin.PriorityHigh}
		allPluginInfo := make([]ghostlineplugin.PluginInfo, 0, len(priorities))
		for i, p := range priorities {
			allPluginInfo = append(allPluginInfo, ghostlineplugin.PluginInfo{
				Priorities: map[string]ghostlineplugin.Priority{protocol.MethodTextDocumentDidOpen: p},
				Methods:    methodExamples[i],
				NameKey:    methodExamples[i].PluginNameKey,
			})
		}

		result, err := PluginInfoToRuntimePrioritizedMethods(allPluginInfo)
		require.NoError(t, err)

		lists := result[protocol.MethodTextDocumentDidOpen]
		require.Len(t, lists.Sync, 2)
		require.Len(t, lists.Async, 1)
		assert.Equal(t, methodExamples[2], lists.Sync[0])
		assert.Equal(t, methodExamples[0], lists.Sync[1])
		assert.Equal(t, methodExamples[1], lists.Async[0])
	})

	t.Run("validation failure", func(t *testing.T) {
		allPluginInfo := []ghostlineplugin.PluginInfo{factory.PluginInfoValid(0), factory.PluginInfoInvalid(1)}
		_, err := PluginInfoToRuntimePrioritizedMethods(allPluginInfo)
		assert.Error(t, err)
	})
}
