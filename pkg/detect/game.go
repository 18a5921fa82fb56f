package detect

import (
	"bufio"
	"debug/elf"
	"debug/pe"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"glaunch/pkg/common"
	"glaunch/pkg/manifest"
)

// Detector is an engine specific name heuristic. It reports false when it
// has no opinion.
type Detector func() (string, bool)

// Identifier resolves a display name for a game directory.
// Immutable
type Identifier struct {
	reg *Registry
	log *slog.Logger
}

// NewIdentifier creates an Identifier over reg.
func NewIdentifier(reg *Registry, log *slog.Logger) *Identifier {
	if log == nil {
		log = slog.Default()
	}
	return &Identifier{reg: reg, log: log}
}

// Identify never fails. Each source is tried in order and the first
// answer wins; when none answers the name is common.UnknownGame.
func (id *Identifier) Identify(root string, kind common.EngineKind, detect Detector) common.GameIdentity {
	entries, err := os.ReadDir(root)
	if err != nil {
		id.log.Debug("cannot list game directory", "root", root, "error", err)
	}

	sources := []func() (common.GameIdentity, bool){
		func() (common.GameIdentity, bool) { return id.knownGame(entries) },
		func() (common.GameIdentity, bool) {
			if detect == nil {
				return common.GameIdentity{}, false
			}
			name, ok := detect()
			if !ok || name == "" {
				return common.GameIdentity{}, false
			}
			return common.GameIdentity{Name: name, Source: common.GameSourceAdapter, Evidence: string(kind)}, true
		},
		func() (common.GameIdentity, bool) { return id.storeMetadata(root, entries) },
		func() (common.GameIdentity, bool) { return id.elfExecutable(root, entries) },
		func() (common.GameIdentity, bool) { return id.consoleExecutable(root, entries) },
	}
	for _, src := range sources {
		if g, ok := src(); ok {
			id.log.Debug("identified game", "name", g.Name, "source", g.Source, "evidence", g.Evidence)
			return g
		}
	}
	return common.GameIdentity{Name: common.UnknownGame, Source: common.GameSourceUnknown}
}

func (id *Identifier) knownGame(entries []os.DirEntry) (common.GameIdentity, bool) {
	for _, name := range id.reg.KnownGames {
		glob := gameGlob(name)
		if glob == "" {
			continue
		}
		for _, e := range entries {
			if ok, _ := path.Match(glob, strings.ToLower(e.Name())); ok {
				return common.GameIdentity{Name: name, Source: common.GameSourceKnown, Evidence: e.Name()}, true
			}
		}
	}
	return common.GameIdentity{}, false
}

func (id *Identifier) storeMetadata(root string, entries []os.DirEntry) (common.GameIdentity, bool) {
	for _, e := range entries {
		if ok, _ := path.Match("goggame-*.info", e.Name()); !ok {
			continue
		}
		doc, err := manifest.Load(filepath.Join(root, e.Name()))
		if err != nil {
			id.log.Debug("unreadable store metadata", "file", e.Name(), "error", err)
			continue
		}
		if name, ok := doc.String(".name"); ok && name != "" {
			return common.GameIdentity{Name: name, Source: common.GameSourceStore, Evidence: e.Name()}, true
		}
	}

	f, err := os.Open(filepath.Join(root, "gameinfo"))
	if err != nil {
		return common.GameIdentity{}, false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			return common.GameIdentity{Name: name, Source: common.GameSourceStore, Evidence: "gameinfo"}, true
		}
	}
	return common.GameIdentity{}, false
}

var nativeSuffixes = []string{".x86_64", ".x86", ".bin", ".aarch64", ".arm64"}

func (id *Identifier) elfExecutable(root string, entries []os.DirEntry) (common.GameIdentity, bool) {
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasSuffix(name, ".so") || strings.Contains(name, ".so.") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Mode().Perm()&0o111 == 0 {
			continue
		}
		f, err := elf.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		typ := f.Type
		f.Close()
		if typ != elf.ET_EXEC && typ != elf.ET_DYN {
			continue
		}
		return common.GameIdentity{Name: trimSuffixes(name, nativeSuffixes), Source: common.GameSourceELF, Evidence: name}, true
	}
	return common.GameIdentity{}, false
}

func (id *Identifier) consoleExecutable(root string, entries []os.DirEntry) (common.GameIdentity, bool) {
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(name), ".exe") {
			continue
		}
		f, err := pe.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		oh, ok := f.OptionalHeader.(*pe.OptionalHeader32)
		f.Close()
		if !ok || oh.Subsystem != pe.IMAGE_SUBSYSTEM_WINDOWS_CUI {
			continue
		}
		return common.GameIdentity{Name: name[:len(name)-len(".exe")], Source: common.GameSourcePE32, Evidence: name}, true
	}
	return common.GameIdentity{}, false
}

func trimSuffixes(name string, suffixes []string) string {
	for {
		i := slices.IndexFunc(suffixes, func(s string) bool { return strings.HasSuffix(name, s) })
		if i < 0 || len(name) == len(suffixes[i]) {
			return name
		}
		name = strings.TrimSuffix(name, suffixes[i])
	}
}
