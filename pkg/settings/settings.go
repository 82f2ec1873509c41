// Package settings manages persistent user settings for the soniclab CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences
type Settings struct {
	// SpecPath overrides the default topology spec file
	SpecPath string `json:"spec_path,omitempty"`

	// Image is the NOS container image to deploy
	Image string `json:"image,omitempty"`

	// ArtifactDir is where rendered artifacts and the compose file land
	ArtifactDir string `json:"artifact_dir,omitempty"`

	// HistoryPath overrides the default run-history database location
	HistoryPath string `json:"history_path,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "soniclab_settings.json"
	}
	return filepath.Join(home, ".soniclab", "settings.json")
}

// DefaultHistoryPath returns the default run-history database path.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "soniclab_history.db"
	}
	return filepath.Join(home, ".soniclab", "history.db")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetHistoryPath returns the history database path (with fallback)
func (s *Settings) GetHistoryPath() string {
	if s.HistoryPath != "" {
		return s.HistoryPath
	}
	return DefaultHistoryPath()
}

// GetArtifactDir returns the artifact directory (with fallback)
func (s *Settings) GetArtifactDir() string {
	if s.ArtifactDir != "" {
		return s.ArtifactDir
	}
	return "lab"
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
