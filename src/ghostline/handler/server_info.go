package handler

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ghostline-dev/ghostline/src/ghostline/internal/serverinfofile"
	"go.uber.org/config"
)

const (
	_configKeyService = "service"

	_infoFileKeyName    = "service-name"
	_infoFileKeyVersion = "service-version"
	_infoFileKeyPID     = "pid"
)

type serviceInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Output the identity of this daemon process so that editor integrations can find and verify it.
// The JSON-RPC module independently adds its listening address to the same file.
func outputServiceInfo(cfg config.Provider, infofile serverinfofile.ServerInfoFile) error {
	var info serviceInfo
	if err := cfg.Get(_configKeyService).Populate(&info); err != nil {
		return fmt.Errorf("loading service config: %w", err)
	}
	if info.Name == "" {
		return fmt.Errorf("missing field %q in config", _configKeyService+".name")
	}

	fields := []struct{ key, value string }{
		{_infoFileKeyName, info.Name},
		{_infoFileKeyVersion, info.Version},
		{_infoFileKeyPID, strconv.Itoa(os.Getpid())},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := infofile.UpdateField(f.key, f.value); err != nil {
			return fmt.Errorf("outputting %q to info file: %w", f.key, err)
		}
	}

	return nil
}
