package app

import (
	"errors"
	"testing"

	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs/fsmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
)

func TestEnv(t *testing.T) {
	tests := []struct {
		name      string
		setEnvVal string
		expectVal string
	}{
		{
			name:      "local",
			expectVal: EnvLocal,
		},
		{
			name:      "development",
			setEnvVal: EnvDevelopment,
			expectVal: EnvDevelopment,
		},
		{
			name:      "unknown value",
			setEnvVal: "production",
			expectVal: EnvLocal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(_envGhostlineEnvironment, tt.setEnvVal)

			fxtest.New(
				t,
				fx.Provide(func() Context {
					return Context{
						Environment:        EnvLocal,
						RuntimeEnvironment: EnvLocal,
					}
				}),
				fx.Decorate(decorateEnvContext),
				fx.Invoke(func(ctx Context) {
					require.Equal(t, tt.expectVal, ctx.Environment, "unexpected environment")
					require.Equal(t, tt.expectVal, ctx.RuntimeEnvironment, "unexpected runtime environment")
				}),
			).RequireStart().RequireStop()
		})
	}
}

func TestDecorateConfigProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Run("no errors", func(t *testing.T) {
		fsMock := fsmock.NewMockGhostlineFS(ctrl)
		fsMock.EXPECT().MkdirAll("/tmp/foo").Return(nil)
		fsMock.EXPECT().MkdirAll("/tmp/ghostline").Return(nil)

		fxtest.New(
			t,
			fx.Provide(func() fs.GhostlineFS {
				return fsMock
			}),
			fx.Provide(func() config.Provider {
				p, _ := config.NewStaticProvider(map[string]interface{}{
					"logging": map[string]interface{}{
						"outputPaths": []string{
							"/tmp/foo/myfile1.log",
						},
					},
					"storage": map[string]interface{}{
						"dir": "/tmp/ghostline",
					},
				})
				return p
			}),
			fx.Provide(func() Context {
				return Context{
					RuntimeEnvironment: EnvDevelopment,
				}
			}),
			fx.Decorate(decorateConfigProvider),
			fx.Invoke(func(cfg config.Provider) {
			}),
		).RequireStart().RequireStop()
	})

	t.Run("storage error", func(t *testing.T) {
		fsMock := fsmock.NewMockGhostlineFS(ctrl)
		fsMock.EXPECT().MkdirAll("/tmp/ghostline").Return(errors.New("permission denied"))

		p, _ := config.NewStaticProvider(map[string]interface{}{
			"storage": map[string]interface{}{
				"dir": "/tmp/ghostline",
			},
		})
		_, err := decorateConfigProvider(DecorateConfigParams{Cfg: p, FS: fsMock})
		assert.ErrorContains(t, err, "permission denied")
	})
}

func TestEnsureLogFolder(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Run("no errors", func(t *testing.T) {
		fsMock := fsmock.NewMockGhostlineFS(ctrl)

		fsMock.EXPECT().MkdirAll("/tmp/foo").Return(nil)
		fsMock.EXPECT().MkdirAll("/tmp/bar").Return(nil)

		fxtest.New(
			t,
			fx.Provide(func() fs.GhostlineFS {
				return fsMock
			}),
			fx.Provide(func() config.Provider {
				p, _ := config.NewStaticProvider(map[string]interface{}{
					"logging": map[string]interface{}{
						"outputPaths": []string{
							"/tmp/foo/myfile1.log",
							"/tmp/bar/myfile2.log",
							"stderr",
						},
					},
				})
				return p
			}),
			fx.Decorate(ensureLogFolder),
			fx.Invoke(func(cfg config.Provider) {
			}),
		).RequireStart().RequireStop()
	})

	t.Run("error creating directory", func(t *testing.T) {
		fsMock := fsmock.NewMockGhostlineFS(ctrl)
		fsMock.EXPECT().MkdirAll("/tmp/foo").Return(errors.New("error creating directory"))
		p, _ := config.NewStaticProvider(map[string]interface{}{
			"logging": map[string]interface{}{
				"outputPaths": []string{
					"/tmp/foo/myfile1.log",
					"/tmp/bar/myfile2.log",
				},
			},
		})
		_, err := ensureLogFolder(p, fsMock)
		assert.Error(t, err)
	})
}

func TestEnsureStorageFolder(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("not configured", func(t *testing.T) {
		fsMock := fsmock.NewMockGhostlineFS(ctrl)
		p, _ := config.NewStaticProvider(map[string]interface{}{})
		assert.NoError(t, ensureStorageFolder(p, fsMock))
	})

	t.Run("created", func(t *testing.T) {
		fsMock := fsmock.NewMockGhostlineFS(ctrl)
		fsMock.EXPECT().MkdirAll("/home/dev/.ghostline").Return(nil)
		p, _ := config.NewStaticProvider(map[string]interface{}{
			"storage": map[string]interface{}{"dir": "/home/dev/.ghostline"},
		})
		assert.NoError(t, ensureStorageFolder(p, fsMock))
	})
}
