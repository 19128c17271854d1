package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
)

// SettingsSection is the key under which the client sends ghostline settings.
const SettingsSection = "ghostline"

// SettingsSectionFromObject returns the ghostline section of a settings object, or the object itself when it has no such key.
// Both initializationOptions and workspace/didChangeConfiguration settings are accepted.
func SettingsSectionFromObject(obj interface{}) interface{} {
	if m, ok := obj.(map[string]interface{}); ok {
		if section, ok := m[SettingsSection]; ok {
			return section
		}
	}
	return obj
}

// ApplySettingsSection overlays the fields present in section onto a copy of base.
// Fields absent from section keep their value from base.
func ApplySettingsSection(base entity.Settings, section interface{}) (entity.Settings, error) {
	result := base.Clone()
	if section == nil {
		return result, nil
	}

	raw, err := json.Marshal(section)
	if err != nil {
		return base, fmt.Errorf("encoding settings: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return base, fmt.Errorf("decoding settings: %w", err)
	}
	return result, nil
}
