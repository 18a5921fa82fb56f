package config

import (
	"fmt"

	"glaunch/pkg/lazyjson"
)

// Settings is the content of $XDG_CONFIG_HOME/glaunch/config.json.
// Comments are allowed in the file.
type Settings struct {
	// Paths grants extra filesystem access, e.g. {"/mnt/games": "rwc"}.
	Paths map[string]string `json:"paths,omitempty"`
	// Env is overlaid on every launch.
	Env map[string]string `json:"env,omitempty"`
	// Network allows the game to open network connections.
	Network bool `json:"network,omitempty"`
	// JavaVersions overrides the installable Java versions for this host.
	JavaVersions []string `json:"java_versions,omitempty"`
	// Tools overrides external tool locations, e.g. {"ffmpeg": "/opt/bin/ffmpeg"}.
	Tools map[string]string `json:"tools,omitempty"`
}

// Tool returns the configured location of an external tool, or name itself.
func (s *Settings) Tool(name string) string {
	if s != nil {
		if p, ok := s.Tools[name]; ok && p != "" {
			return p
		}
	}
	return name
}

// LoadSettings reads the user settings. A missing file yields empty settings.
func LoadSettings(cfg ReadOnly) (*Settings, error) {
	s, err := lazyjson.Open(cfg.GetSettingsPath(), lazyjson.Commented[Settings]()).Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings %s: %w", cfg.GetSettingsPath(), err)
	}
	return s, nil
}
