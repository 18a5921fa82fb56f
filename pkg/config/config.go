package config

import (
	"fmt"
	"os/user"
	"path/filepath"

	"github.com/adrg/xdg"

	"glaunch/pkg/common"
)

// ReadOnly is the view of Config handed to the rest of the program.
// Immutable
type ReadOnly interface {
	GetConfigDir() string
	GetStateDir() string
	GetLogDir() string
	GetScriptDir() string
	GetSettingsPath() string
	GetOverridesPath() string
	GetOS() OSType
	GetArch() ArchType
	GetHostHome() string
	Freeze()
	Checkout() Writable
}

// Writable relocates the base directories before the config is frozen.
// Mutable
type Writable interface {
	ReadOnly
	SetConfigDir(string)
	SetStateDir(string)
}

// Config holds the base directories and host facts.
// Mutable
type Config struct {
	// $XDG_CONFIG_HOME/glaunch: config.json and overrides.star.
	configDir string
	// $XDG_STATE_HOME/glaunch: logs, scripts and history.json.
	stateDir string

	logDir        string
	scriptDir     string
	settingsPath  string
	overridesPath string

	os       OSType
	arch     ArchType
	hostHome string

	frozen bool
	edited bool
}

var _ Writable = (*Config)(nil)

func (c *Config) GetConfigDir() string     { return c.configDir }
func (c *Config) GetStateDir() string      { return c.stateDir }
func (c *Config) GetLogDir() string        { return c.logDir }
func (c *Config) GetScriptDir() string     { return c.scriptDir }
func (c *Config) GetSettingsPath() string  { return c.settingsPath }
func (c *Config) GetOverridesPath() string { return c.overridesPath }
func (c *Config) GetOS() OSType            { return c.os }
func (c *Config) GetArch() ArchType        { return c.arch }
func (c *Config) GetHostHome() string      { return c.hostHome }

func (c *Config) SetConfigDir(dir string) {
	c.mustEdit()
	c.configDir = dir
	c.derive()
}

func (c *Config) SetStateDir(dir string) {
	c.mustEdit()
	c.stateDir = dir
	c.derive()
}

func (c *Config) mustEdit() {
	if c.frozen {
		panic("cannot modify frozen config")
	}
}

// Freeze makes every later Set panic.
func (c *Config) Freeze() {
	c.frozen = true
}

// Checkout hands out the single writable view.
func (c *Config) Checkout() Writable {
	if c.frozen {
		panic("cannot checkout from frozen config")
	}
	if c.edited {
		panic("config already checked out")
	}
	c.edited = true
	return c
}

func (c *Config) derive() {
	c.logDir = filepath.Join(c.stateDir, "logs")
	c.scriptDir = filepath.Join(c.stateDir, "scripts")
	c.settingsPath = filepath.Join(c.configDir, "config.json")
	c.overridesPath = filepath.Join(c.configDir, "overrides.star")
}

// Init resolves the XDG base directories for the current user.
func Init() (ReadOnly, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	c := &Config{
		configDir: filepath.Join(xdg.ConfigHome, "glaunch"),
		stateDir:  filepath.Join(xdg.StateHome, "glaunch"),
		os:        common.HostOS(),
		arch:      common.HostArch(),
		hostHome:  u.HomeDir,
	}
	c.derive()
	return c, nil
}

// NewForTest builds a Config rooted at dir, for tests in other packages.
// The returned config is still checked out.
func NewForTest(dir string, osType OSType) *Config {
	c := &Config{os: osType, arch: ArchX64, hostHome: filepath.Join(dir, "home")}
	w := c.Checkout()
	w.SetConfigDir(filepath.Join(dir, "config"))
	w.SetStateDir(filepath.Join(dir, "state"))
	return c
}
