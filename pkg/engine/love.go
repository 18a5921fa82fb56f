package engine

import (
	"path/filepath"
	"strings"

	"glaunch/pkg/archive"
	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// loveGameDir receives the game extracted from a fused executable.
const loveGameDir = "love-game"

// Love runs LÖVE games, either a .love archive or one fused into the
// Windows executable.
type Love struct{}

func (*Love) Kind() common.EngineKind { return common.EngineLove }

func (*Love) ExtraCapabilities(env *Env) []capability.Grant {
	return env.homeGrants(".local/share/love")
}

// Setup extracts a fused executable once; main.lua marks completion.
func (l *Love) Setup(env *Env) ([]common.TransformRequest, error) {
	if _, ok := l.archive(env); ok {
		return nil, nil
	}
	if env.Exists(loveGameDir, "main.lua") || env.Evidence.Path == "" {
		return nil, nil
	}
	return []common.TransformRequest{common.Extract{
		Archive: env.Path(env.Evidence.Path),
		Dest:    env.Path(loveGameDir),
		Handler: string(archive.HandlerZip),
	}}, nil
}

func (l *Love) BuildLaunch(env *Env, _ common.GameIdentity) (*common.LaunchSpec, error) {
	target, ok := l.archive(env)
	if !ok {
		if env.Evidence.Path == "" {
			return nil, unresolved(env, "love game")
		}
		target = loveGameDir
	}
	return &common.LaunchSpec{
		Exe:  env.Tool("love"),
		Args: []string{target},
		Dir:  env.Root,
	}, nil
}

// DetectGame names the game after its .love archive.
func (l *Love) DetectGame(env *Env) (string, bool) {
	a, ok := l.archive(env)
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(filepath.Base(a), filepath.Ext(a)), true
}

func (*Love) archive(env *Env) (string, bool) {
	if names := env.Glob("*.love"); len(names) > 0 {
		return names[0], true
	}
	return "", false
}
