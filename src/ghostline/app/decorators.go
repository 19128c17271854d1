package app

import (
	"fmt"
	"os"
	"path"

	"github.com/ghostline-dev/ghostline/src/ghostline/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Context struct {
	Environment        string `yaml:"environment"`
	RuntimeEnvironment string `yaml:"runtimeEnvironment"`
}

const (
	// EnvLocal indicates that the service is running locally.
	EnvLocal = "local"

	// EnvDevelopment indicates that the service is running in a development environment.
	EnvDevelopment = "development"

	// Environment variables
	_envGhostlineEnvironment = "GHOSTLINE_ENVIRONMENT"

	_configKeyStorageDir = "storage.dir"
)

// Outputs that zap opens itself rather than as files.
var _nonFileOutputs = map[string]struct{}{
	"stdout": {},
	"stderr": {},
}

func decorateEnvContext(env Context) Context {
	envValue := EnvLocal
	if os.Getenv(_envGhostlineEnvironment) == EnvDevelopment {
		envValue = EnvDevelopment
	}

	env.Environment = envValue
	env.RuntimeEnvironment = envValue
	return env
}

// DecorateConfigParams is the set of dependencies required to decorate the config.Provider.
type DecorateConfigParams struct {
	fx.In

	Env Context
	Cfg config.Provider
	FS  fs.GhostlineFS
}

// decorateConfigProvider includes any steps that modify the config.Provider before it is used, or use its data for any startup related activities.
func decorateConfigProvider(p DecorateConfigParams) (config.Provider, error) {
	combined, err := ensureLogFolder(p.Cfg, p.FS)
	if err != nil {
		return nil, fmt.Errorf("ensuring log folder: %v", err)
	}

	if err := ensureStorageFolder(combined, p.FS); err != nil {
		return nil, fmt.Errorf("ensuring storage folder: %v", err)
	}

	return combined, nil
}

// Ensure that all configured logging output directories exist or create if necessary.
func ensureLogFolder(cfg config.Provider, fs fs.GhostlineFS) (config.Provider, error) {
	var c zap.Config
	if err := cfg.Get("logging").Populate(&c); err != nil {
		return nil, fmt.Errorf("loading logging config: %v", err)
	}

	for _, outputPath := range c.OutputPaths {
		if _, ok := _nonFileOutputs[outputPath]; ok {
			continue
		}
		dir := path.Dir(outputPath)
		if err := fs.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("creating logging directory: %v", err)
		}
	}

	return cfg, nil
}

// The storage directory holds the activity log and the stored API keys.
func ensureStorageFolder(cfg config.Provider, fs fs.GhostlineFS) error {
	var dir string
	if err := cfg.Get(_configKeyStorageDir).Populate(&dir); err != nil {
		return fmt.Errorf("loading storage config: %v", err)
	}
	if dir == "" {
		return nil
	}

	if err := fs.MkdirAll(dir); err != nil {
		return fmt.Errorf("creating storage directory: %v", err)
	}
	return nil
}
