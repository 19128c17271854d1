package ghostlinedaemon

import (
	"context"
	"errors"
	"testing"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCodeAction(t *testing.T) {
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	core, recorded := observer.New(zap.ErrorLevel)
	c := controller{
		logger:        zap.New(core).Sugar(),
		pluginMethods: sampleCompletionMethods(s.UUID),
	}

	t.Run("results are merged", func(t *testing.T) {
		result, err := c.CodeAction(ctx, &protocol.CodeActionParams{})
		c.wg.Wait()
		require.NoError(t, err)
		assert.Equal(t, []protocol.CodeAction{{Title: "Explain"}}, result)
		assert.Equal(t, 2, len(recorded.TakeAll()))
	})

	t.Run("no session", func(t *testing.T) {
		_, err := c.CodeAction(context.Background(), &protocol.CodeActionParams{})
		assert.Error(t, err)
	})
}

func TestInlineCompletion(t *testing.T) {
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	core, recorded := observer.New(zap.ErrorLevel)
	c := controller{
		logger:        zap.New(core).Sugar(),
		pluginMethods: sampleCompletionMethods(s.UUID),
	}

	t.Run("items are collected", func(t *testing.T) {
		result, err := c.InlineCompletion(ctx, &entity.InlineCompletionParams{})
		c.wg.Wait()
		require.NoError(t, err)
		assert.Equal(t, []entity.InlineCompletionItem{{InsertText: "bar)"}}, result.Items)
		assert.Equal(t, 2, len(recorded.TakeAll()))
	})

	t.Run("no registered plugins returns an empty list", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, factory.UUID())
		result, err := c.InlineCompletion(ctx, &entity.InlineCompletionParams{})
		require.NoError(t, err)
		assert.NotNil(t, result.Items)
		assert.Empty(t, result.Items)
	})

	t.Run("no session", func(t *testing.T) {
		_, err := c.InlineCompletion(context.Background(), &entity.InlineCompletionParams{})
		assert.Error(t, err)
	})
}

// sampleCompletionMethods simulates two plugins per method: the first contributes a result, the second returns an error.
// Async calls receive a nil result.
func sampleCompletionMethods(id uuid.UUID) map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods {
	err := errors.New("sample")
	m := []*ghostlineplugin.Methods{
		{
			CodeAction: func(ctx context.Context, params *protocol.CodeActionParams, result *[]protocol.CodeAction) error {
				if result != nil {
					*result = append(*result, protocol.CodeAction{Title: "Explain"})
				}
				return nil
			},
			InlineCompletion: func(ctx context.Context, params *entity.InlineCompletionParams, result *entity.InlineCompletionList) error {
				if result != nil {
					result.Items = append(result.Items, entity.InlineCompletionItem{InsertText: "bar)"})
				}
				return nil
			},
		},
		{
			CodeAction: func(ctx context.Context, params *protocol.CodeActionParams, result *[]protocol.CodeAction) error {
				return err
			},
			InlineCompletion: func(ctx context.Context, params *entity.InlineCompletionParams, result *entity.InlineCompletionList) error {
				return err
			},
		},
	}

	result := ghostlineplugin.RuntimePrioritizedMethods{
		protocol.MethodTextDocumentCodeAction: {
			Sync:  m,
			Async: m[1:],
		},
		entity.MethodTextDocumentInlineCompletion: {
			Sync:  m,
			Async: m[1:],
		},
	}

	return map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{id: result}
}
