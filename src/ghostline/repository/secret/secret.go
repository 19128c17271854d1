package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/errors"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"github.com/ghostline-dev/ghostline/src/ghostline/model"
	"github.com/joho/godotenv"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:generate mockgen -destination repositorymock/secret_mock.go -package repositorymock . Repository

const (
	_configKeyStorageDir = "storage.dir"
	_configKeyEnvFile    = "secrets.envFile"
	_secretsFileName     = "secrets.yaml"
)

// Source describes where an API key was found.
type Source string

const (
	// SourceNone means no key is configured.
	SourceNone Source = ""
	// SourceEnvironment means the key came from the process environment.
	SourceEnvironment Source = "environment"
	// SourceEnvFile means the key came from the configured .env file.
	SourceEnvFile Source = "env file"
	// SourceSecretsFile means the key came from the private secrets file.
	SourceSecretsFile Source = "secrets file"
)

// Repository stores one API key per provider.
// Environment variables take precedence over the .env file, which takes precedence over the secrets file.
type Repository interface {
	// Get returns the key for the provider, or a MissingSecretError when none is configured.
	Get(ctx context.Context, provider entity.ProviderName) (string, error)
	// Source reports where the provider's key would be read from.
	Source(ctx context.Context, provider entity.ProviderName) (Source, error)
	Set(ctx context.Context, provider entity.ProviderName, value string) error
	Delete(ctx context.Context, provider entity.ProviderName) error
}

// Params are inbound parameters to initialize a new secret repository.
type Params struct {
	fx.In

	Config config.Provider
	FS     fs.GhostlineFS
	Logger *zap.SugaredLogger
}

type repository struct {
	mu          sync.Mutex
	fs          fs.GhostlineFS
	logger      *zap.SugaredLogger
	secretsPath string
	envFile     string
	lookupEnv   func(key string) (string, bool)
}

// New returns a repository backed by a private YAML file in the storage directory.
func New(p Params) (Repository, error) {
	var storageDir string
	if err := p.Config.Get(_configKeyStorageDir).Populate(&storageDir); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyStorageDir, err)
	}
	if storageDir == "" {
		return nil, fmt.Errorf("missing field %q in config", _configKeyStorageDir)
	}

	var envFile string
	if err := p.Config.Get(_configKeyEnvFile).Populate(&envFile); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyEnvFile, err)
	}

	return &repository{
		fs:          p.FS,
		logger:      p.Logger,
		secretsPath: filepath.Join(storageDir, _secretsFileName),
		envFile:     envFile,
		lookupEnv:   os.LookupEnv,
	}, nil
}

func (r *repository) Get(ctx context.Context, provider entity.ProviderName) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, _, err := r.lookup(provider)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", &errors.MissingSecretError{Provider: string(provider), SecretName: provider.SecretName()}
	}
	return value, nil
}

func (r *repository) Source(ctx context.Context, provider entity.ProviderName) (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, source, err := r.lookup(provider)
	return source, err
}

func (r *repository) Set(ctx context.Context, provider entity.ProviderName, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("API key for %s cannot be empty", provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.readSecretsFile()
	if err != nil {
		return err
	}
	stored.Keys[provider.SecretName()] = value
	if err := r.writeSecretsFile(stored); err != nil {
		return err
	}
	r.logger.Infow("stored API key", "provider", provider)
	return nil
}

func (r *repository) Delete(ctx context.Context, provider entity.ProviderName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.readSecretsFile()
	if err != nil {
		return err
	}
	if _, ok := stored.Keys[provider.SecretName()]; !ok {
		return nil
	}
	delete(stored.Keys, provider.SecretName())
	if err := r.writeSecretsFile(stored); err != nil {
		return err
	}
	r.logger.Infow("removed API key", "provider", provider)
	return nil
}

func (r *repository) lookup(provider entity.ProviderName) (string, Source, error) {
	if value, ok := r.lookupEnv(provider.EnvVar()); ok && value != "" {
		return value, SourceEnvironment, nil
	}

	if r.envFile != "" {
		exists, err := r.fs.FileExists(r.envFile)
		if err != nil {
			return "", SourceNone, fmt.Errorf("checking env file: %w", err)
		}
		if exists {
			env, err := godotenv.Read(r.envFile)
			if err != nil {
				return "", SourceNone, fmt.Errorf("reading env file %q: %w", r.envFile, err)
			}
			if value := env[provider.EnvVar()]; value != "" {
				return value, SourceEnvFile, nil
			}
		}
	}

	stored, err := r.readSecretsFile()
	if err != nil {
		return "", SourceNone, err
	}
	if value := stored.Keys[provider.SecretName()]; value != "" {
		return value, SourceSecretsFile, nil
	}
	return "", SourceNone, nil
}

func (r *repository) readSecretsFile() (*model.SecretsFile, error) {
	stored := &model.SecretsFile{Keys: make(map[string]string)}
	exists, err := r.fs.FileExists(r.secretsPath)
	if err != nil {
		return nil, fmt.Errorf("checking secrets file: %w", err)
	}
	if !exists {
		return stored, nil
	}

	data, err := r.fs.ReadFile(r.secretsPath)
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, stored); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	if stored.Keys == nil {
		stored.Keys = make(map[string]string)
	}
	return stored, nil
}

func (r *repository) writeSecretsFile(stored *model.SecretsFile) error {
	if err := r.fs.MkdirAll(filepath.Dir(r.secretsPath)); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding secrets file: %w", err)
	}
	if err := r.fs.WritePrivateFile(r.secretsPath, data); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}
	return nil
}
