package engine

import (
	"path/filepath"
	"strings"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// Godot runs a game's data pack with the system Godot runtime.
type Godot struct{}

func (*Godot) Kind() common.EngineKind { return common.EngineGodot }

func (*Godot) ExtraCapabilities(env *Env) []capability.Grant {
	return env.homeGrants(".local/share/godot", ".cache/godot", ".config/godot")
}

func (*Godot) Setup(*Env) ([]common.TransformRequest, error) { return nil, nil }

func (g *Godot) BuildLaunch(env *Env, _ common.GameIdentity) (*common.LaunchSpec, error) {
	pack, ok := g.pack(env)
	if !ok {
		return nil, unresolved(env, "godot data pack")
	}
	return &common.LaunchSpec{
		Exe:  env.Tool("godot"),
		Args: []string{"--main-pack", pack},
		Dir:  env.Root,
	}, nil
}

// DetectGame names the game after its pack unless the pack has a generic
// name.
func (g *Godot) DetectGame(env *Env) (string, bool) {
	pack, ok := g.pack(env)
	if !ok {
		return "", false
	}
	name := strings.TrimSuffix(filepath.Base(pack), filepath.Ext(pack))
	switch strings.ToLower(name) {
	case "data", "game", "main":
		return "", false
	}
	return name, true
}

// pack prefers a standalone .pck and falls back to the executable the
// classifier found an embedded pack in.
func (*Godot) pack(env *Env) (string, bool) {
	if pcks := env.Glob("*.pck"); len(pcks) > 0 {
		return pcks[0], true
	}
	if env.Evidence.Path != "" && env.Exists(env.Evidence.Path) {
		return env.Evidence.Path, true
	}
	return "", false
}
