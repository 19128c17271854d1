package ghostlinedaemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	ghostlineplugin "github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin"
	"github.com/ghostline-dev/ghostline/src/ghostline/entity/ghostline-plugin/pluginmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/factory"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/ide-client/ideclientmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/core/fxmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/jsonrpcfx/jsonrpc2mock"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/workspace-utils/workspaceutilsmock"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/session/repositorymock"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/fx"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	folders := []protocol.WorkspaceFolder{{URI: "file:///home/dev/project", Name: "project"}}

	initializePlugin := func(ctrl *gomock.Controller, name string, err error) ghostlineplugin.Plugin {
		p := pluginmock.NewMockPlugin(ctrl)
		p.EXPECT().StartupInfo(gomock.Any()).Return(ghostlineplugin.PluginInfo{
			Priorities: map[string]ghostlineplugin.Priority{
				protocol.MethodInitialize: ghostlineplugin.PriorityHigh,
			},
			Methods: &ghostlineplugin.Methods{
				PluginNameKey: name,
				Initialize: func(ctx context.Context, params *protocol.InitializeParams, result *protocol.InitializeResult) error {
					if err != nil {
						return err
					}
					result.Capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{Commands: []string{name}}
					return nil
				},
			},
			NameKey: name,
		}, nil)
		return p
	}

	t.Run("initialize success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := &entity.Session{UUID: factory.UUID()}
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

		sessionRepository := repositorymock.NewMockRepository(ctrl)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, s *entity.Session) error {
			assert.Equal(t, "/home/dev/project", s.WorkspaceRoot)
			assert.Equal(t, "ghostline-dev/ghostline", s.RepoName)
			return nil
		})

		utils := workspaceutilsmock.NewMockWorkspaceUtils(ctrl)
		utils.EXPECT().GetWorkspaceRoot(gomock.Any(), folders).Return("/home/dev/project", nil)
		utils.EXPECT().GetRepoName(gomock.Any(), "/home/dev/project").Return("ghostline-dev/ghostline", nil)

		core, recorded := observer.New(zap.ErrorLevel)
		c := controller{
			logger:         zap.New(core).Sugar(),
			sessions:       sessionRepository,
			workspaceUtils: utils,
			pluginsAll: []ghostlineplugin.Plugin{
				initializePlugin(ctrl, "sample1", nil),
				initializePlugin(ctrl, "sample2", errors.New("sample")),
			},
			pluginConfig:  map[string]bool{"sample1": true, "sample2": true},
			pluginMethods: map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{},
		}

		params := &protocol.InitializeParams{WorkspaceFolders: folders}
		res, err := c.Initialize(ctx, params)
		c.wg.Wait()
		require.NoError(t, err)
		assert.Equal(t, "Ghostline", res.ServerInfo.Name)
		assert.Equal(t, protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindIncremental,
			Save: &protocol.SaveOptions{
				IncludeText: true,
			},
		}, res.Capabilities.TextDocumentSync)
		assert.Equal(t, []string{"sample1"}, res.Capabilities.ExecuteCommandProvider.Commands)
		assert.Equal(t, params, s.InitializeParams)
		assert.Equal(t, 1, recorded.Len())
	})

	t.Run("missing session uuid in context", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sessionRepository := repositorymock.NewMockRepository(ctrl)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(nil, errors.New("sample"))
		c := controller{
			sessions: sessionRepository,
		}

		_, err := c.Initialize(context.Background(), &protocol.InitializeParams{})
		assert.Error(t, err)
	})

	t.Run("no workspace root", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := &entity.Session{UUID: factory.UUID()}
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

		sessionRepository := repositorymock.NewMockRepository(ctrl)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)

		utils := workspaceutilsmock.NewMockWorkspaceUtils(ctrl)
		utils.EXPECT().GetWorkspaceRoot(gomock.Any(), gomock.Any()).Return("", errors.New("no workspace folders provided"))

		c := controller{
			logger:         zap.NewNop().Sugar(),
			sessions:       sessionRepository,
			workspaceUtils: utils,
			pluginsAll:     []ghostlineplugin.Plugin{initializePlugin(ctrl, "sample1", nil)},
			pluginConfig:   map[string]bool{"sample1": true},
			pluginMethods:  map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{},
		}

		res, err := c.Initialize(ctx, &protocol.InitializeParams{})
		require.NoError(t, err)
		assert.Empty(t, s.WorkspaceRoot)
		assert.Equal(t, []string{"sample1"}, res.Capabilities.ExecuteCommandProvider.Commands)
	})

	t.Run("repo name failure is not fatal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := &entity.Session{UUID: factory.UUID()}
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

		sessionRepository := repositorymock.NewMockRepository(ctrl)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)

		utils := workspaceutilsmock.NewMockWorkspaceUtils(ctrl)
		utils.EXPECT().GetWorkspaceRoot(gomock.Any(), gomock.Any()).Return("/tmp/scratch", nil)
		utils.EXPECT().GetRepoName(gomock.Any(), "/tmp/scratch").Return("", errors.New("not a git repository"))

		c := controller{
			logger:         zap.NewNop().Sugar(),
			sessions:       sessionRepository,
			workspaceUtils: utils,
			pluginMethods:  map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{},
		}

		_, err := c.Initialize(ctx, &protocol.InitializeParams{WorkspaceFolders: folders})
		assert.NoError(t, err)
		assert.Equal(t, "/tmp/scratch", s.WorkspaceRoot)
	})

	t.Run("session update failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		s := &entity.Session{UUID: factory.UUID()}
		ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

		sessionRepository := repositorymock.NewMockRepository(ctrl)
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("sample"))

		utils := workspaceutilsmock.NewMockWorkspaceUtils(ctrl)
		utils.EXPECT().GetWorkspaceRoot(gomock.Any(), gomock.Any()).Return("", errors.New("sample"))

		c := controller{
			logger:         zap.NewNop().Sugar(),
			sessions:       sessionRepository,
			workspaceUtils: utils,
		}

		_, err := c.Initialize(ctx, &protocol.InitializeParams{})
		assert.Error(t, err)
	})
}

func TestInitialized(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := &entity.Session{
		UUID:          factory.UUID(),
		WorkspaceRoot: "/home/dev/project",
	}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	sessionRepository := repositorymock.NewMockRepository(ctrl)
	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)

	pluginMethods := map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{s.UUID: {}}
	pluginMethods[s.UUID][protocol.MethodInitialized] = ghostlineplugin.MethodLists{
		Sync: []*ghostlineplugin.Methods{
			{
				Initialized: func(ctx context.Context, params *protocol.InitializedParams) error {
					return nil
				},
			},
			{
				Initialized: func(ctx context.Context, params *protocol.InitializedParams) error {
					return errors.New("sample")
				},
			},
		},
		Async: []*ghostlineplugin.Methods{
			{
				Initialized: func(ctx context.Context, params *protocol.InitializedParams) error {
					return errors.New("sample")
				},
			},
		},
	}

	core, recorded := observer.New(zap.ErrorLevel)
	c := controller{
		logger:        zap.New(core).Sugar(),
		pluginMethods: pluginMethods,
		sessions:      sessionRepository,
		ideGateway:    mockIdeGateway,
	}

	t.Run("initialized with workspace root", func(t *testing.T) {
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil)
		mockIdeGateway.EXPECT().LogMessage(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, params *protocol.LogMessageParams) error {
			assert.Contains(t, params.Message, "/home/dev/project")
			return nil
		})

		err := c.Initialized(ctx, &protocol.InitializedParams{})
		c.wg.Wait()
		assert.NoError(t, err)
		assert.Equal(t, 2, recorded.Len())
	})

	t.Run("initialized without workspace root", func(t *testing.T) {
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(&entity.Session{UUID: s.UUID}, nil)
		mockIdeGateway.EXPECT().ShowMessage(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, params *protocol.ShowMessageParams) error {
			assert.Equal(t, protocol.MessageTypeWarning, params.Type)
			return nil
		})

		err := c.Initialized(ctx, &protocol.InitializedParams{})
		c.wg.Wait()
		assert.NoError(t, err)
	})

	t.Run("session lookup failure", func(t *testing.T) {
		sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(nil, errors.New("sample"))

		err := c.Initialized(ctx, &protocol.InitializedParams{})
		c.wg.Wait()
		assert.Error(t, err)
	})
}

func TestShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	sessionRepository := repositorymock.NewMockRepository(ctrl)

	pluginMethods := map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{s.UUID: {}}
	pluginMethods[s.UUID][protocol.MethodShutdown] = ghostlineplugin.MethodLists{
		Sync: []*ghostlineplugin.Methods{
			{
				Shutdown: func(ctx context.Context) error {
					return nil
				},
			},
			{
				Shutdown: func(ctx context.Context) error {
					return errors.New("sample")
				},
			},
		},
		Async: []*ghostlineplugin.Methods{
			{
				Shutdown: func(ctx context.Context) error {
					return errors.New("sample")
				},
			},
		},
	}

	core, recorded := observer.New(zap.ErrorLevel)
	c := controller{
		logger:        zap.New(core).Sugar(),
		pluginMethods: pluginMethods,
		sessions:      sessionRepository,
	}
	assert.NoError(t, c.Shutdown(ctx))
	c.wg.Wait()
	assert.Equal(t, 2, recorded.Len())

	assert.Error(t, c.Shutdown(context.Background()))
}

func TestExit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockShutdowner := fxmock.NewMockShutdowner(ctrl)

	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(1, nil).AnyTimes()
	sessionRepository.EXPECT().GetFromContext(gomock.Any()).Return(s, nil).AnyTimes()

	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)

	newPluginMethods := func() map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods {
		pluginMethods := map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{s.UUID: {}}
		pluginMethods[s.UUID][protocol.MethodExit] = ghostlineplugin.MethodLists{
			Sync: []*ghostlineplugin.Methods{
				{
					Exit: func(ctx context.Context) error {
						return errors.New("sample")
					},
				},
			},
			Async: []*ghostlineplugin.Methods{
				{
					Exit: func(ctx context.Context) error {
						return errors.New("sample")
					},
				},
			},
		}
		return pluginMethods
	}

	waitForShutdown := func(t *testing.T) {
		shutdown := make(chan struct{})
		mockShutdowner.EXPECT().Shutdown().DoAndReturn(func(...fx.ShutdownOption) error {
			close(shutdown)
			return nil
		})
		t.Cleanup(func() {
			select {
			case <-shutdown:
			case <-time.After(time.Second):
				t.Error("idle timer did not fire")
			}
		})
	}

	t.Run("full shutdown enabled", func(t *testing.T) {
		c := &controller{
			shutdowner:         mockShutdowner,
			sessions:           sessionRepository,
			idleTimeoutMinutes: 5 * time.Minute,
			pluginMethods:      newPluginMethods(),
			ideGateway:         mockIdeGateway,
		}
		c.fullShutdown.Store(true)

		core, recorded := observer.New(zap.ErrorLevel)
		c.logger = zap.New(core).Sugar()
		c.refreshIdleTimer(ctx)

		waitForShutdown(t)
		assert.NoError(t, c.Exit(ctx))
		c.wg.Wait()
		assert.Equal(t, 2, recorded.Len())
	})

	t.Run("full shutdown disabled", func(t *testing.T) {
		c := &controller{
			shutdowner:         mockShutdowner,
			sessions:           sessionRepository,
			idleTimeoutMinutes: 5 * time.Minute,
			pluginMethods:      newPluginMethods(),
			ideGateway:         mockIdeGateway,
		}

		core, recorded := observer.New(zap.ErrorLevel)
		c.logger = zap.New(core).Sugar()
		c.refreshIdleTimer(ctx)

		mockIdeGateway.EXPECT().DeregisterClient(gomock.Any(), s.UUID).Return(nil)
		sessionRepository.EXPECT().Delete(gomock.Any(), s.UUID).Return(nil)

		assert.NoError(t, c.Exit(ctx))
		c.wg.Wait()
		assert.Equal(t, 2, recorded.Len())
		assert.False(t, c.hasSessionPlugins(s.UUID))

		// Stop the idle timer goroutine by requesting a full shutdown.
		waitForShutdown(t)
		c.RequestFullShutdown(ctx)
		assert.NoError(t, c.Exit(ctx))
	})
}

func TestRequestFullShutdown(t *testing.T) {
	c := controller{}

	assert.False(t, c.fullShutdown.Load())
	assert.NoError(t, c.RequestFullShutdown(context.Background()))
	assert.True(t, c.fullShutdown.Load())

	// Duplicate calls have no effect
	assert.NoError(t, c.RequestFullShutdown(context.Background()))
	assert.True(t, c.fullShutdown.Load())
}

func TestInitSession(t *testing.T) {
	ctrl := gomock.NewController(t)

	sessionRepository := repositorymock.NewMockRepository(ctrl)
	ctx := context.Background()

	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)

	c := controller{
		sessions:           sessionRepository,
		logger:             zap.NewNop().Sugar(),
		idleTimer:          time.NewTimer(time.Hour),
		idleTimeoutMinutes: time.Hour,
		ideGateway:         mockIdeGateway,
	}

	mockConn := jsonrpc2mock.NewMockConn(ctrl)
	var conn jsonrpc2.Conn = mockConn

	t.Run("value set successfully", func(t *testing.T) {
		mockIdeGateway.EXPECT().RegisterClient(gomock.Any(), gomock.Any(), &conn).Return(nil)
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, s *entity.Session) error {
			assert.Equal(t, &conn, s.Conn)
			return nil
		})
		sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(1, nil)
		id, err := c.InitSession(ctx, &conn)
		assert.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)

		// Timer should be stopped when a session is active.
		assert.False(t, c.idleTimer.Stop())
	})

	t.Run("error registering client", func(t *testing.T) {
		mockIdeGateway.EXPECT().RegisterClient(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("error"))
		sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(0, nil)
		_, err := c.InitSession(ctx, &conn)
		assert.Error(t, err)
		assert.True(t, c.idleTimer.Stop())
	})

	t.Run("error setting value", func(t *testing.T) {
		mockIdeGateway.EXPECT().RegisterClient(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		sessionRepository.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("error"))
		sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(0, nil)
		_, err := c.InitSession(ctx, &conn)
		assert.Error(t, err)

		// Timer should be running when no sessions are active.
		assert.True(t, c.idleTimer.Stop())
	})
}

func TestEndSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessionRepository := repositorymock.NewMockRepository(ctrl)
	s := &entity.Session{
		UUID: factory.UUID(),
	}
	sessionRepository.EXPECT().SessionCount(gomock.Any()).Return(1, nil).AnyTimes()
	sessionRepository.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	ctx := context.WithValue(context.Background(), entity.SessionContextKey, s.UUID)

	mockIdeGateway := ideclientmock.NewMockGateway(ctrl)
	mockIdeGateway.EXPECT().DeregisterClient(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	pluginMethods := map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{s.UUID: {}}
	pluginMethods[s.UUID][ghostlineplugin.MethodEndSession] = ghostlineplugin.MethodLists{
		Sync: []*ghostlineplugin.Methods{
			{
				EndSession: func(ctx context.Context, uuid uuid.UUID) error {
					return nil
				},
			},
			{
				EndSession: func(ctx context.Context, uuid uuid.UUID) error {
					return errors.New("sample")
				},
			},
		},
		Async: []*ghostlineplugin.Methods{
			{
				EndSession: func(ctx context.Context, uuid uuid.UUID) error {
					return errors.New("sample")
				},
			},
		},
	}

	t.Run("plugins registered", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		c := controller{
			logger:             zap.New(core).Sugar(),
			sessions:           sessionRepository,
			idleTimeoutMinutes: 5 * time.Minute,
			pluginMethods:      pluginMethods,
			ideGateway:         mockIdeGateway,
			idleTimer:          time.NewTimer(time.Hour),
		}

		err := c.EndSession(ctx, s.UUID)
		c.wg.Wait()
		assert.NoError(t, err)
		assert.Equal(t, 2, recorded.Len())
		assert.NotContains(t, c.pluginMethods, s.UUID)
	})

	t.Run("no plugins registered", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		c := controller{
			logger:             zap.New(core).Sugar(),
			sessions:           sessionRepository,
			idleTimeoutMinutes: 5 * time.Minute,
			pluginMethods:      map[uuid.UUID]ghostlineplugin.RuntimePrioritizedMethods{},
			ideGateway:         mockIdeGateway,
			idleTimer:          time.NewTimer(time.Hour),
		}

		err := c.EndSession(ctx, s.UUID)
		c.wg.Wait()
		assert.Equal(t, 0, recorded.Len())
		assert.NoError(t, err)
	})
}
