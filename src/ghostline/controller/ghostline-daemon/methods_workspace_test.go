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
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWorkspaceMethods(t *testing.T) {
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	core, recorded := observer.New(zap.ErrorLevel)
	c := controller{
		logger:        zap.New(core).Sugar(),
		pluginMethods: sampleWorkspaceMethods(s.UUID),
	}

	t.Run("ExecuteCommand", func(t *testing.T) {
		result, err := c.ExecuteCommand(ctx, &protocol.ExecuteCommandParams{Command: entity.CommandChat})
		c.wg.Wait()
		assert.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 2, len(recorded.TakeAll()))
	})

	t.Run("DidChangeConfiguration", func(t *testing.T) {
		err := c.DidChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{})
		c.wg.Wait()
		assert.NoError(t, err)
		assert.Equal(t, 2, len(recorded.TakeAll()))
	})
}

func TestWindowMethods(t *testing.T) {
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	core, recorded := observer.New(zap.ErrorLevel)
	c := controller{
		logger:        zap.New(core).Sugar(),
		pluginMethods: sampleWorkspaceMethods(s.UUID),
	}

	t.Run("WorkDoneProgressCancel", func(t *testing.T) {
		err := c.WorkDoneProgressCancel(ctx, &protocol.WorkDoneProgressCancelParams{})
		c.wg.Wait()
		assert.NoError(t, err)
		assert.Equal(t, 2, len(recorded.TakeAll()))
	})
}

// sampleWorkspaceMethods a sample of RuntimePrioritizedMethods to be used for testing.
// For each method, simulates two assigned plugins: the first returns nil and the second returns an error.
func sampleWorkspaceMethods(id uuid.UUID) map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods {
	err := errors.New("sample")
	m := []*ghostlineplugin.Methods{
		{
			ExecuteCommand: func(ctx context.Context, params *protocol.ExecuteCommandParams) error {
				return nil
			},
			DidChangeConfiguration: func(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
				return nil
			},
			WorkDoneProgressCancel: func(ctx context.Context, params *protocol.WorkDoneProgressCancelParams) error {
				return nil
			},
		},
		{
			ExecuteCommand: func(ctx context.Context, params *protocol.ExecuteCommandParams) error {
				return err
			},
			DidChangeConfiguration: func(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
				return err
			},
			WorkDoneProgressCancel: func(ctx context.Context, params *protocol.WorkDoneProgressCancelParams) error {
				return err
			},
		},
	}

	methodLists := ghostlineplugin.MethodLists{
		Sync:  m,
		Async: m,
	}

	result := make(ghostlineplugin.RuntimePrioritizedMethods)
	for _, val := range []string{
		protocol.MethodWorkspaceExecuteCommand,
		protocol.MethodWorkspaceDidChangeConfiguration,
		protocol.MethodWorkDoneProgressCancel,
	} {
		result[val] = methodLists
	}

	return map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{id: result}
}
