package diskmanager

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadSettings reads storage_settings.json from path. A missing file is
// not an error: callers get DefaultSettings instead, since the settings
// file is created lazily on first save.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("diskmanager: read settings %q: %w", path, err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("diskmanager: parse settings %q: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes settings to path as indented JSON.
func SaveSettings(path string, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("diskmanager: marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("diskmanager: write settings %q: %w", path, err)
	}
	return nil
}

// DefaultSettings is the conservative default applied before the user
// configures storage: auto-clean off, so a fresh install never deletes
// video without explicit opt-in.
func DefaultSettings() Settings {
	return Settings{
		AutoCleanEnabled:   false,
		AutoCleanThreshold: 10,
		AutoCleanDays:      30,
		AutoDetectDrives:   true,
	}
}
