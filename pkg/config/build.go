package config

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X glaunch/pkg/config.version=... -X glaunch/pkg/config.built=...".
var (
	version = ""
	built   = "unknown"
)

// Version is the release, or the module version recorded by go install.
func Version() string {
	if version != "" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "devel"
}

// BuildInfo is the --version line.
func BuildInfo() string {
	return fmt.Sprintf("glaunch %s (built %s) %s/%s", Version(), built, runtime.GOOS, runtime.GOARCH)
}
