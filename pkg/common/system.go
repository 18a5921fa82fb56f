package common

import (
	"fmt"
	"runtime"
	"strings"
)

// OSType is a host operating system. Values match runtime.GOOS.
type OSType string

const (
	OSLinux   OSType = "linux"
	OSOpenBSD OSType = "openbsd"
	OSFreeBSD OSType = "freebsd"
	OSDarwin  OSType = "darwin"
	OSUnknown OSType = "unknown"
)

// ArchType is a host CPU architecture.
type ArchType string

const (
	ArchX64     ArchType = "x64"
	ArchArm64   ArchType = "arm64"
	ArchUnknown ArchType = "unknown"
)

// ParseOS accepts GOOS names and "macos" for Darwin.
func ParseOS(s string) (OSType, error) {
	switch o := OSType(strings.ToLower(s)); o {
	case OSLinux, OSOpenBSD, OSFreeBSD, OSDarwin, OSUnknown:
		return o, nil
	case "macos":
		return OSDarwin, nil
	}
	return OSUnknown, fmt.Errorf("unsupported operating system: %s", s)
}

// ParseArch accepts GOARCH names and the kernel's uname -m spelling.
func ParseArch(s string) (ArchType, error) {
	switch strings.ToLower(s) {
	case "amd64", "x64", "x86_64":
		return ArchX64, nil
	case "arm64", "aarch64":
		return ArchArm64, nil
	case "unknown":
		return ArchUnknown, nil
	}
	return ArchUnknown, fmt.Errorf("unsupported architecture: %s", s)
}

// HostOS is the OS this binary was built for, OSUnknown if unsupported.
func HostOS() OSType {
	o, _ := ParseOS(runtime.GOOS)
	return o
}

// HostArch is the architecture this binary was built for.
func HostArch() ArchType {
	a, _ := ParseArch(runtime.GOARCH)
	return a
}

// Multiarch is the Debian multiarch tuple naming the architecture's
// library directory, e.g. /usr/lib/x86_64-linux-gnu.
func (a ArchType) Multiarch() string {
	switch a {
	case ArchX64:
		return "x86_64-linux-gnu"
	case ArchArm64:
		return "aarch64-linux-gnu"
	}
	return ""
}

func (o OSType) String() string   { return string(o) }
func (a ArchType) String() string { return string(a) }
