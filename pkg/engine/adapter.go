// Package engine holds one adapter per supported engine. An adapter looks at
// a classified game directory and declares what the launch needs: extra
// filesystem access, one-time file transformations and the final command.
// Adapters never touch the filesystem beyond reading it; enactment belongs
// to the execution mode.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
	"glaunch/pkg/config"
)

// Adapter is implemented by every engine.
type Adapter interface {
	Kind() common.EngineKind
	// ExtraCapabilities lists access the engine needs beyond the platform
	// defaults and the game directory.
	ExtraCapabilities(env *Env) []capability.Grant
	// Setup returns the transformations still missing in env.Root. It must
	// return nothing once they have been applied.
	Setup(env *Env) ([]common.TransformRequest, error)
	// BuildLaunch produces the command. It reads the directory as it was
	// before Setup's requests were enacted.
	BuildLaunch(env *Env, game common.GameIdentity) (*common.LaunchSpec, error)
}

// GameDetector is implemented by adapters that can name a game from engine
// specific files.
type GameDetector interface {
	DetectGame(env *Env) (string, bool)
}

// Env is what an adapter may consult.
// Immutable
type Env struct {
	// Root is the absolute game directory.
	Root     string
	Evidence common.EvidenceFile
	OS       common.OSType
	Home     string
	Settings *config.Settings
	// JavaVersions overrides the installable Java versions of the host.
	JavaVersions []string
	// LibDirs lists system library directories searched for replacements.
	LibDirs []string
	// LookPath resolves runtime binaries. Defaults to exec.LookPath.
	LookPath func(string) (string, error)
	Log      *slog.Logger
}

// NewEnv builds an Env for root from the host configuration.
func NewEnv(cfg config.ReadOnly, settings *config.Settings, root string, evidence common.EvidenceFile) *Env {
	env := &Env{
		Root:     root,
		Evidence: evidence,
		OS:       cfg.GetOS(),
		Home:     cfg.GetHostHome(),
		Settings: settings,
		LibDirs:  systemLibDirs(cfg.GetOS(), cfg.GetArch()),
		LookPath: exec.LookPath,
		Log:      slog.Default(),
	}
	if settings != nil {
		env.JavaVersions = settings.JavaVersions
	}
	return env
}

// Path joins rel onto the game directory.
func (e *Env) Path(rel ...string) string {
	return filepath.Join(append([]string{e.Root}, rel...)...)
}

// Exists reports whether rel exists under the game directory.
func (e *Env) Exists(rel ...string) bool {
	_, err := os.Lstat(e.Path(rel...))
	return err == nil
}

// Glob returns the names in the game directory matching any pattern,
// sorted and without duplicates. Matching ignores case, as classification
// does.
func (e *Env) Glob(patterns ...string) []string {
	var out []string
	for _, p := range patterns {
		dir, base := filepath.Split(filepath.FromSlash(p))
		entries, err := os.ReadDir(e.Path(dir))
		if err != nil {
			continue
		}
		base = strings.ToLower(base)
		for _, ent := range entries {
			if ok, _ := filepath.Match(base, strings.ToLower(ent.Name())); !ok {
				continue
			}
			if rel := filepath.Join(dir, ent.Name()); !slices.Contains(out, rel) {
				out = append(out, rel)
			}
		}
	}
	slices.Sort(out)
	return out
}

// evidence returns the classifier's evidence file when it is still present.
func (e *Env) evidence() (string, bool) {
	if e.Evidence.Path == "" || !e.Exists(e.Evidence.Path) {
		return "", false
	}
	return e.Evidence.Path, true
}

// Tool resolves an external program, honouring the user's overrides.
func (e *Env) Tool(name string) string {
	tool := e.Settings.Tool(name)
	if tool != name || e.LookPath == nil {
		return tool
	}
	if p, err := e.LookPath(name); err == nil {
		return p
	}
	return name
}

// SystemLib finds name in the system library directories.
func (e *Env) SystemLib(name string) (string, bool) {
	for _, dir := range e.LibDirs {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func (e *Env) logger() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}

// homeGrants grants RWC on each directory relative to the user's home.
func (e *Env) homeGrants(rels ...string) []capability.Grant {
	if e.Home == "" {
		return nil
	}
	grants := make([]capability.Grant, 0, len(rels))
	for _, rel := range rels {
		grants = append(grants, capability.HomeGrant(e.Home, rel))
	}
	return grants
}

func systemLibDirs(osType common.OSType, arch common.ArchType) []string {
	switch osType {
	case common.OSOpenBSD, common.OSFreeBSD:
		return []string{"/usr/local/lib", "/usr/X11R6/lib", "/usr/lib"}
	}
	var dirs []string
	if tuple := arch.Multiarch(); tuple != "" {
		dirs = append(dirs, "/usr/lib/"+tuple)
	}
	return append(dirs, "/usr/lib64", "/usr/lib", "/usr/local/lib")
}

var registry = map[common.EngineKind]func() Adapter{
	common.EngineJava:     func() Adapter { return &Java{} },
	common.EngineMono:     func() Adapter { return &Mono{} },
	common.EngineGZDoom:   func() Adapter { return &GZDoom{} },
	common.EngineHashLink: func() Adapter { return &HashLink{} },
	common.EngineGodot:    func() Adapter { return &Godot{} },
	common.EngineLove:     func() Adapter { return &Love{} },
	common.EngineNWJS:     func() Adapter { return &NWJS{} },
}

// For returns the adapter registered for kind.
func For(kind common.EngineKind) (Adapter, error) {
	newAdapter, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter for engine %q", kind)
	}
	return newAdapter(), nil
}

// Detector adapts an optional GameDetector to a plain function. It returns
// nil when a does not detect names.
func Detector(a Adapter, env *Env) func() (string, bool) {
	d, ok := a.(GameDetector)
	if !ok {
		return nil
	}
	return func() (string, bool) { return d.DetectGame(env) }
}

// unresolved reports a required value no source could provide.
func unresolved(env *Env, what string) error {
	return common.Fail(common.StageLaunch, env.Root, fmt.Errorf("%s: %w", what, common.ErrAdapterResolution))
}

// replaceWithSystem emits a Replace for each bundled library that has a
// system copy, skipping those already linked.
func replaceWithSystem(env *Env, names []string) []common.TransformRequest {
	var reqs []common.TransformRequest
	for _, name := range names {
		target := env.Path(name)
		fi, err := os.Lstat(target)
		if err != nil {
			continue
		}
		src, ok := env.SystemLib(filepath.Base(name))
		if !ok {
			continue
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			if cur, err := os.Readlink(target); err == nil && cur == src {
				continue
			}
		}
		reqs = append(reqs, common.Replace{Target: target, Source: src})
	}
	return reqs
}

// removeExisting emits a Remove for each name present under the root.
func removeExisting(env *Env, names []string) []common.TransformRequest {
	var reqs []common.TransformRequest
	for _, name := range names {
		if env.Exists(name) {
			reqs = append(reqs, common.Remove{Path: env.Path(name)})
		}
	}
	return reqs
}
