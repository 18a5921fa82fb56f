package engine

import (
	"io/fs"
	"path/filepath"
	"strings"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// Mono launches FNA, MonoGame and XNA games with the system Mono runtime.
type Mono struct{}

func (*Mono) Kind() common.EngineKind { return common.EngineMono }

// monoSystemAssemblies are framework assemblies some games bundle. Loading
// them instead of the runtime's own copies breaks on a newer Mono.
var monoSystemAssemblies = []string{
	"mscorlib.dll",
	"System.dll",
	"System.Core.dll",
	"System.Configuration.dll",
	"System.Data.dll",
	"System.Drawing.dll",
	"System.Numerics.dll",
	"System.Runtime.Serialization.dll",
	"System.Security.dll",
	"System.Xml.dll",
	"System.Xml.Linq.dll",
	"Mono.Posix.dll",
	"Mono.Security.dll",
}

// monoNativeLibs are bundled native libraries replaced by system builds.
var monoNativeLibs = []string{
	"lib64/libSDL2-2.0.so.0",
	"lib64/libFNA3D.so.0",
	"lib64/libFAudio.so.0",
	"lib64/libtheorafile.so",
	"lib64/libopenal.so.1",
}

// launcherNames are executables that are not the game itself.
var launcherNames = []string{"unins", "setup", "crashreport", "launcher", "vcredist", "dxsetup"}

func (*Mono) ExtraCapabilities(env *Env) []capability.Grant {
	var grants []capability.Grant
	switch env.OS {
	case common.OSOpenBSD, common.OSFreeBSD:
		grants = append(grants, capability.Grant{Path: "/usr/local/lib/mono", Access: capability.RX})
	default:
		grants = append(grants, capability.Grant{Path: "/usr/lib/mono", Access: capability.RX})
	}
	return append(grants, env.homeGrants(".local/share", ".config")...)
}

// Setup removes bundled framework assemblies, links native libraries to
// system copies and converts WMA music the system FAudio cannot play.
func (*Mono) Setup(env *Env) ([]common.TransformRequest, error) {
	reqs := removeExisting(env, monoSystemAssemblies)
	reqs = append(reqs, replaceWithSystem(env, monoNativeLibs)...)

	err := filepath.WalkDir(env.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".wma" && ext != ".xwma" {
			return nil
		}
		dest := strings.TrimSuffix(path, filepath.Ext(path)) + ".ogg"
		rel, _ := filepath.Rel(env.Root, dest)
		if env.Exists(rel) {
			return nil
		}
		reqs = append(reqs, common.Convert{Source: path, Dest: dest, Codec: "vorbis"})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (m *Mono) BuildLaunch(env *Env, game common.GameIdentity) (*common.LaunchSpec, error) {
	exe, ok := m.mainAssembly(env, game)
	if !ok {
		return nil, unresolved(env, "mono entry assembly")
	}
	spec := &common.LaunchSpec{
		Exe:  env.Tool("mono"),
		Args: []string{exe},
		Dir:  env.Root,
	}
	if env.Exists("lib64") {
		spec.SetEnv("LD_LIBRARY_PATH", env.Path("lib64"))
	}
	spec.SetEnv("MONO_ENV_OPTIONS", "--gc=sgen")
	return spec, nil
}

// DetectGame names the game after its only entry assembly.
func (m *Mono) DetectGame(env *Env) (string, bool) {
	exes := m.candidates(env)
	if len(exes) != 1 {
		return "", false
	}
	return strings.TrimSuffix(exes[0], filepath.Ext(exes[0])), true
}

func (m *Mono) mainAssembly(env *Env, game common.GameIdentity) (string, bool) {
	exes := m.candidates(env)
	if len(exes) == 0 {
		return "", false
	}
	want := strings.ToLower(strings.Join(strings.Fields(game.Name), ""))
	for _, e := range exes {
		if strings.ToLower(strings.TrimSuffix(e, filepath.Ext(e))) == want {
			return e, true
		}
	}
	return exes[0], true
}

func (*Mono) candidates(env *Env) []string {
	var out []string
	for _, e := range env.Glob("*.exe") {
		lower := strings.ToLower(e)
		skip := false
		for _, l := range launcherNames {
			if strings.HasPrefix(lower, l) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, e)
		}
	}
	return out
}
