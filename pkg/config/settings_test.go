package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSettingsMissing(t *testing.T) {
	cfg := NewForTest(t.TempDir(), OSLinux)
	s, err := LoadSettings(cfg)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Network || len(s.Paths) != 0 {
		t.Errorf("expected empty settings, got %+v", s)
	}
	if got := s.Tool("ffmpeg"); got != "ffmpeg" {
		t.Errorf("expected default tool name, got %s", got)
	}
}

func TestLoadSettingsWithComments(t *testing.T) {
	cfg := NewForTest(t.TempDir(), OSLinux)
	if err := os.MkdirAll(cfg.GetConfigDir(), 0755); err != nil {
		t.Fatal(err)
	}
	data := `{
  // shared library of mods
  "paths": {"/mnt/mods": "r"},
  "network": true,
  "tools": {"ffmpeg": "/opt/ffmpeg/bin/ffmpeg"}, /* trailing comma is fine */
}`
	if err := os.WriteFile(cfg.GetSettingsPath(), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(cfg)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !s.Network {
		t.Error("expected network enabled")
	}
	if s.Paths["/mnt/mods"] != "r" {
		t.Errorf("unexpected paths: %v", s.Paths)
	}
	if got := s.Tool("ffmpeg"); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("unexpected tool path %s", got)
	}
}

func TestFrozenConfigPanics(t *testing.T) {
	cfg := NewForTest(t.TempDir(), OSLinux)
	var w Writable = cfg
	w.SetStateDir(filepath.Join(t.TempDir(), "elsewhere"))
	if cfg.GetLogDir() != filepath.Join(cfg.GetStateDir(), "logs") {
		t.Errorf("derived log dir not updated: %s", cfg.GetLogDir())
	}
	cfg.Freeze()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on frozen config")
		}
	}()
	w.SetConfigDir("/tmp/x")
}

func TestCheckoutOnce(t *testing.T) {
	cfg := NewForTest(t.TempDir(), OSLinux)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on second checkout")
		}
	}()
	cfg.Checkout()
}

func TestBuildInfo(t *testing.T) {
	if v := Version(); v == "" {
		t.Error("empty version")
	}
	if !strings.HasPrefix(BuildInfo(), "glaunch ") {
		t.Errorf("unexpected build info %q", BuildInfo())
	}
}
