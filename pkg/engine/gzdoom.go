package engine

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// GZDoom launches total conversions shipped as an IWAD package.
type GZDoom struct{}

func (*GZDoom) Kind() common.EngineKind { return common.EngineGZDoom }

func (*GZDoom) ExtraCapabilities(env *Env) []capability.Grant {
	grants := []capability.Grant{
		{Path: "/usr/share/games/doom", Access: capability.Read},
		{Path: "/usr/local/share/games/doom", Access: capability.Read},
	}
	return append(grants, env.homeGrants(".config/gzdoom", ".local/share/gzdoom")...)
}

func (*GZDoom) Setup(*Env) ([]common.TransformRequest, error) { return nil, nil }

func (g *GZDoom) BuildLaunch(env *Env, _ common.GameIdentity) (*common.LaunchSpec, error) {
	iwad, ok := g.iwad(env)
	if !ok {
		return nil, unresolved(env, "gzdoom iwad")
	}
	spec := &common.LaunchSpec{
		Exe:  env.Tool("gzdoom"),
		Args: []string{"-iwad", iwad},
		Dir:  env.Root,
	}
	for _, pk3 := range env.Glob("*.pk3") {
		spec.Args = append(spec.Args, "-file", pk3)
	}
	return spec, nil
}

// DetectGame names the game after its IWAD.
func (g *GZDoom) DetectGame(env *Env) (string, bool) {
	iwad, ok := g.iwad(env)
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(filepath.Base(iwad), filepath.Ext(iwad)), true
}

// iwad returns the package to pass to -iwad: the first ipk3, ipk7 or iwad
// file, else the first .wad starting with the IWAD magic, else the file the
// classifier matched, which may sit below the game directory.
func (*GZDoom) iwad(env *Env) (string, bool) {
	if names := env.Glob("*.ipk3", "*.ipk7", "*.iwad"); len(names) > 0 {
		return names[0], true
	}
	for _, w := range env.Glob("*.wad") {
		if hasIWADMagic(env.Path(w)) {
			return w, true
		}
	}
	return env.evidence()
}

func hasIWADMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return bytes.Equal(magic[:], []byte("IWAD"))
}
