package engine

import (
	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// HashLink launches Haxe games compiled to HashLink bytecode.
type HashLink struct{}

func (*HashLink) Kind() common.EngineKind { return common.EngineHashLink }

// hashlinkLibs are native modules a game ships next to hlboot.dat. The
// bundled builds target another libc, so they are linked to system ones.
var hashlinkLibs = []string{
	"fmt.hdll",
	"sdl.hdll",
	"openal.hdll",
	"ui.hdll",
	"uv.hdll",
	"ssl.hdll",
	"mysql.hdll",
	"sqlite.hdll",
	"libhl.so",
	"libSDL2-2.0.so.0",
	"libopenal.so.1",
	"libuv.so.1",
}

// hashlinkStale are bundled files that must not be loaded at all.
var hashlinkStale = []string{"steam.hdll", "libsteam_api.so", "directx.hdll"}

func (*HashLink) ExtraCapabilities(env *Env) []capability.Grant {
	var grants []capability.Grant
	for _, dir := range env.LibDirs {
		grants = append(grants, capability.Grant{Path: dir, Access: capability.RX})
	}
	return append(grants, env.homeGrants(".local/share")...)
}

func (*HashLink) Setup(env *Env) ([]common.TransformRequest, error) {
	reqs := removeExisting(env, hashlinkStale)
	return append(reqs, replaceWithSystem(env, hashlinkLibs)...), nil
}

func (*HashLink) BuildLaunch(env *Env, _ common.GameIdentity) (*common.LaunchSpec, error) {
	var boot string
	if env.Exists("hlboot.dat") {
		boot = "hlboot.dat"
	} else if hl := env.Glob("*.hl"); len(hl) > 0 {
		boot = hl[0]
	} else {
		return nil, unresolved(env, "hashlink bytecode")
	}
	spec := &common.LaunchSpec{
		Exe:  env.Tool("hl"),
		Args: []string{boot},
		Dir:  env.Root,
	}
	spec.SetEnv("LD_LIBRARY_PATH", env.Root)
	return spec, nil
}
