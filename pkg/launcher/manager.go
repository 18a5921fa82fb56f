// Package launcher drives a launch from a game directory to a running,
// confined process: classify, select the adapter, identify the game, set
// up, build the launch, apply user overrides, seal the policy, confine and
// run. Each step is enacted through the selected execution mode.
package launcher

import (
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"glaunch/pkg/capability"
	"glaunch/pkg/config"
	"glaunch/pkg/detect"
	"glaunch/pkg/display"
	"glaunch/pkg/lazyjson"
	"glaunch/pkg/override"
)

// manager holds what every launch on this host shares.
type manager struct {
	cfg      config.ReadOnly
	disp     display.Display
	settings *config.Settings
	registry *detect.Registry
	enforcer capability.Enforcer
	hook     *override.Hook
	history  *lazyjson.File[History]
	log      *slog.Logger
	lookPath func(string) (string, error)
}

// Manager is a pointer to the internal manager implementation.
type Manager = *manager

// NewManager loads the user settings and overrides for cfg.
func NewManager(cfg config.ReadOnly, disp display.Display, enforcer capability.Enforcer, log *slog.Logger) (Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	settings, err := config.LoadSettings(cfg)
	if err != nil {
		return nil, err
	}
	hook, err := override.Load(cfg.GetOverridesPath(), log)
	if err != nil {
		return nil, err
	}
	return &manager{
		cfg:      cfg,
		disp:     disp,
		settings: settings,
		registry: detect.BuiltinRegistry(),
		enforcer: enforcer,
		hook:     hook,
		history: lazyjson.Open(filepath.Join(cfg.GetStateDir(), "history.json"),
			lazyjson.Default(func() *History { return &History{Games: map[string]*Entry{}} }),
		),
		log:      log,
		lookPath: exec.LookPath,
	}, nil
}

// Settings returns the loaded user settings.
func (m *manager) Settings() *config.Settings { return m.settings }

func (m *manager) String() string {
	return fmt.Sprintf("launcher(%s)", m.cfg.GetConfigDir())
}
