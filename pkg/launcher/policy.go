package launcher

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// buildPolicy collects the grants of every contributor. The builder is
// returned unsealed.
func (m *manager) buildPolicy(p *Plan, spec *common.LaunchSpec) (*capability.Builder, error) {
	b := capability.NewBuilder()
	b.AddGrants(capability.PlatformDefaults(m.cfg.GetOS())...)
	b.Add(p.Root, capability.RWC)
	b.Add(os.TempDir(), capability.RWC)
	b.Add(m.cfg.GetLogDir(), capability.RWC)
	b.AddGrants(p.Adapter.ExtraCapabilities(p.Env)...)

	if exe, ok := m.resolveExe(spec); ok {
		b.Add(exe, capability.RX)
	}

	paths := make([]string, 0, len(m.settings.Paths))
	for path := range m.settings.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		access, err := capability.ParseAccess(m.settings.Paths[path])
		if err != nil {
			return nil, common.Fail(common.StageLaunch, m.cfg.GetSettingsPath(), err)
		}
		b.Add(expandHome(path, m.cfg.GetHostHome()), access)
	}

	b.Allow(capability.DefaultPromises...)
	if m.settings.Network {
		b.Allow(capability.NetworkPromises...)
	}
	return b, nil
}

// resolveExe finds the file the launch executes. A runtime that is not
// installed gets no grant, the launch itself reports it.
func (m *manager) resolveExe(spec *common.LaunchSpec) (string, bool) {
	exe := spec.Exe
	if !strings.ContainsRune(exe, filepath.Separator) {
		found, err := m.lookPath(exe)
		if err != nil {
			m.log.Debug("runtime not on PATH", "exe", exe)
			return "", false
		}
		exe = found
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, true
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}
