package mode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"glaunch/pkg/bubblewrap"
	"glaunch/pkg/capability"
	"glaunch/pkg/common"
	"glaunch/pkg/config"
)

// Script writes a POSIX sh script replaying the transformations and
// launching the game.
// Mutable
type Script struct {
	journal
	path     string
	os       common.OSType
	settings *config.Settings
	lines    []string
	policy   *capability.Sealed
}

// NewScript returns a mode writing to path. On Linux the launch is wrapped
// in bwrap with binds derived from the policy.
func NewScript(path string, osType common.OSType, settings *config.Settings) *Script {
	return &Script{path: path, os: osType, settings: settings}
}

func (m *Script) Name() string { return "script" }

func (m *Script) emit(format string, args ...any) {
	m.lines = append(m.lines, fmt.Sprintf(format, args...))
}

func (m *Script) Extract(_ context.Context, reqs []common.Extract) error {
	for _, e := range reqs {
		m.record(e.String())
		line, err := extractShell(m.settings, e)
		if err != nil {
			return failed(e.Archive, err)
		}
		m.emit("mkdir -p %s", shellQuote(e.Dest))
		m.emit("%s", line)
	}
	return nil
}

func (m *Script) Remove(_ context.Context, reqs []common.Remove) error {
	for _, r := range reqs {
		m.record(r.String())
		m.emit("rm -rf -- %s", shellQuote(r.Path))
	}
	return nil
}

func (m *Script) Replace(_ context.Context, reqs []common.Replace) error {
	for _, r := range reqs {
		m.record(r.String())
		m.emit("rm -rf -- %s", shellQuote(r.Target))
		m.emit("ln -s -- %s %s", shellQuote(r.Source), shellQuote(r.Target))
	}
	return nil
}

func (m *Script) Convert(_ context.Context, reqs []common.Convert) error {
	for _, c := range reqs {
		m.record(c.String())
		argv, err := convertArgv(m.settings, c)
		if err != nil {
			return failed(c.Source, err)
		}
		m.emit("[ -e %s ] || %s", shellQuote(c.Dest), shellJoin(argv))
	}
	return nil
}

// Confine keeps the policy for the launch line and documents it.
func (m *Script) Confine(_ context.Context, policy *capability.Sealed) error {
	m.recordPolicy(policy)
	m.policy = policy
	return nil
}

// Run writes the script. Nothing is executed.
func (m *Script) Run(_ context.Context, name string, spec *common.LaunchSpec) (*Result, error) {
	m.recordRun(name, spec)
	if m.policy == nil {
		return nil, common.Fail(common.StageRun, m.path, fmt.Errorf("no policy to apply"))
	}
	content := m.render(name, spec)
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, common.Fail(common.StageRun, m.path, err)
	}
	if err := os.WriteFile(m.path, []byte(content), 0o755); err != nil {
		return nil, common.Fail(common.StageRun, m.path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(m.path, 0o755); err != nil {
		return nil, common.Fail(common.StageRun, m.path, err)
	}
	return &Result{Artifact: m.path, Journal: m.Journal()}, nil
}

func (m *Script) render(name string, spec *common.LaunchSpec) string {
	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&sb, "# Launch script for %s.\n", strings.ReplaceAll(name, "\n", " "))
	sb.WriteString("#\n# Policy:\n")
	for _, g := range m.policy.Grants() {
		fmt.Fprintf(&sb, "#   %-4s %s\n", g.Access, g.Path)
	}
	fmt.Fprintf(&sb, "#   promises: %s\n", m.policy.PromiseString())
	if m.os != common.OSLinux {
		sb.WriteString("#\n# The policy is not enforced when run from this script.\n")
	}
	sb.WriteString("set -eu\n\n")
	for _, l := range m.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	if len(m.lines) > 0 {
		sb.WriteByte('\n')
	}
	if spec.Dir != "" {
		fmt.Fprintf(&sb, "cd %s\n", shellQuote(spec.Dir))
	}
	fmt.Fprintf(&sb, "exec %s\n", shellJoin(m.launchArgv(spec)))
	return sb.String()
}

func (m *Script) launchArgv(spec *common.LaunchSpec) []string {
	if m.os == common.OSLinux {
		return bubblewrap.FromPolicy(m.settings.Tool("bwrap"), m.policy, spec).Argv()
	}
	if len(spec.Env) == 0 {
		return spec.Argv()
	}
	argv := append([]string{"env"}, spec.Env...)
	return append(argv, spec.Argv()...)
}
