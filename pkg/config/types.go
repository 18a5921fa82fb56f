// Package config resolves where glaunch keeps its files, following the XDG
// base directory layout, and loads the user's launch settings.
package config

import "glaunch/pkg/common"

type (
	OSType   = common.OSType
	ArchType = common.ArchType
)

const (
	OSLinux   = common.OSLinux
	OSOpenBSD = common.OSOpenBSD
	ArchX64   = common.ArchX64
	ArchArm64 = common.ArchArm64
)
