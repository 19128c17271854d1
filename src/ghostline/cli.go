package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/gateway/llm"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/core"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/jsonrpcfx"
	"github.com/ghostline-dev/ghostline/src/ghostline/repository/secret"
	"github.com/spf13/cobra"
	tally "github.com/uber-go/tally/v4"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// _envAddress overrides jsonrpc.address in the configuration.
	_envAddress = "GHOSTLINE_LSP_ADDRESS"

	_configKeySettings = "settings"
	_configKeyChat     = "chat"

	_defaultAskMaxTokens = 1024
)

// cliDeps are the pieces of the daemon that one-shot commands use directly.
type cliDeps struct {
	Config  config.Provider
	Secrets secret.Repository
	LLM     llm.Gateway
}

type askConfig struct {
	SystemPrompt string  `yaml:"systemPrompt"`
	MaxTokens    int     `yaml:"maxTokens"`
	Temperature  float64 `yaml:"temperature"`
}

func cliOpts(deps *cliDeps) fx.Option {
	return fx.Options(
		core.ConfigModule,
		fs.Module,
		// One-shot commands report on stdout and leave the daemon log alone.
		fx.Provide(func() *zap.SugaredLogger { return zap.NewNop().Sugar() }),
		fx.Provide(secret.New),
		fx.Provide(llm.New),
		fx.Provide(func() tally.Scope { return tally.NoopScope }),
		fx.Populate(&deps.Config, &deps.Secrets, &deps.LLM),
		fx.NopLogger,
	)
}

// loadCLIDeps builds the secret store and API client without starting the daemon.
func loadCLIDeps() (cliDeps, error) {
	var deps cliDeps
	if err := fx.New(cliOpts(&deps)).Err(); err != nil {
		return cliDeps{}, err
	}
	return deps, nil
}

func newRootCmd(daemonOpts func() fx.Option, loadDeps func() (cliDeps, error)) *cobra.Command {
	serve := newServeCmd(daemonOpts)

	root := &cobra.Command{
		Use:          "ghostline",
		Short:        "LLM editor assistant served over the Language Server Protocol",
		Version:      _version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve)
	root.AddCommand(newKeyCmd(loadDeps))
	root.AddCommand(newAskCmd(loadDeps))
	return root
}

func newServeCmd(daemonOpts func() fx.Option) *cobra.Command {
	var stdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdio {
				if err := os.Setenv(_envAddress, jsonrpcfx.AddressStdio); err != nil {
					return fmt.Errorf("selecting stdio transport: %w", err)
				}
			}

			app := fx.New(daemonOpts())
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve a single editor over stdin and stdout")
	return cmd
}

func newKeyCmd(loadDeps func() (cliDeps, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage provider API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider> <key>",
		Short: "Store the API key for a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, deps, err := resolveProvider(args[0], loadDeps)
			if err != nil {
				return err
			}
			key := strings.TrimSpace(args[1])
			if key == "" {
				return errors.New("API key must not be empty")
			}
			if err := deps.Secrets.Set(cmd.Context(), provider, key); err != nil {
				return fmt.Errorf("storing %s API key: %w", provider, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s API key saved.\n", provider)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <provider>",
		Short: "Remove the stored API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, deps, err := resolveProvider(args[0], loadDeps)
			if err != nil {
				return err
			}
			if err := deps.Secrets.Delete(cmd.Context(), provider); err != nil {
				return fmt.Errorf("removing %s API key: %w", provider, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s API key removed.\n", provider)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <provider>",
		Short: "Report whether an API key is configured for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, deps, err := resolveProvider(args[0], loadDeps)
			if err != nil {
				return err
			}
			source, err := deps.Secrets.Source(cmd.Context(), provider)
			if err != nil {
				return fmt.Errorf("checking %s API key: %w", provider, err)
			}
			if source == secret.SourceNone {
				fmt.Fprintf(cmd.OutOrStdout(), "%s API key is not configured. Set %s or run 'ghostline key set %s <key>'.\n", provider, provider.EnvVar(), provider)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s API key is configured (%s).\n", provider, source)
			return nil
		},
	})

	return cmd
}

func newAskCmd(loadDeps func() (cliDeps, error)) *cobra.Command {
	var modelID string

	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Send a single prompt to a model and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := loadDeps()
			if err != nil {
				return err
			}

			var settings entity.Settings
			if err := deps.Config.Get(_configKeySettings).Populate(&settings); err != nil {
				return fmt.Errorf("getting config field %q: %w", _configKeySettings, err)
			}
			var cfg askConfig
			if err := deps.Config.Get(_configKeyChat).Populate(&cfg); err != nil {
				return fmt.Errorf("getting config field %q: %w", _configKeyChat, err)
			}
			if cfg.MaxTokens <= 0 {
				cfg.MaxTokens = _defaultAskMaxTokens
			}
			if modelID == "" {
				modelID = settings.ModelID()
			}

			result := deps.LLM.CallModel(cmd.Context(), modelID, entity.ModelRequest{
				SystemPrompt:   cfg.SystemPrompt,
				Messages:       []entity.ChatMessage{{Role: entity.RoleUser, Content: strings.Join(args, " ")}},
				MaxTokens:      cfg.MaxTokens,
				Temperature:    cfg.Temperature,
				CustomEndpoint: settings.CustomEndpoint,
			})
			if result.Failed() {
				return errors.New(result.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(result.Text))
			return nil
		},
	}
	cmd.Flags().StringVar(&modelID, "model", "", "model id, defaults to settings.defaultModel")
	return cmd
}

func resolveProvider(name string, loadDeps func() (cliDeps, error)) (entity.ProviderName, cliDeps, error) {
	provider, err := entity.ParseProvider(name)
	if err != nil {
		return "", cliDeps{}, err
	}
	deps, err := loadDeps()
	if err != nil {
		return "", cliDeps{}, err
	}
	return provider, deps, nil
}
