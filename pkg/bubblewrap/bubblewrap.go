// Package bubblewrap builds bwrap(1) command lines that reproduce a sealed
// capability policy as bind mounts. Emitted scripts use it to confine a
// replayed launch on Linux, where Landlock cannot be applied from sh.
package bubblewrap

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"

	"glaunch/pkg/capability"
	"glaunch/pkg/common"
)

// Mount is a bwrap mount option.
type Mount string

const (
	// Binds take a source and a destination. The -try forms skip a
	// missing source.
	Bind          Mount = "--bind"
	BindTry       Mount = "--bind-try"
	ReadOnly      Mount = "--ro-bind"
	ReadOnlyTry   Mount = "--ro-bind-try"
	DeviceBind    Mount = "--dev-bind"
	DeviceBindTry Mount = "--dev-bind-try"

	// Synthetic filesystems take only a destination.
	Proc  Mount = "--proc"
	Dev   Mount = "--dev"
	Tmpfs Mount = "--tmpfs"
	Dir   Mount = "--dir"
)

func (m Mount) synthetic() bool {
	switch m {
	case Proc, Dev, Tmpfs, Dir:
		return true
	}
	return false
}

type mount struct {
	kind Mount
	dest string
}

// Sandbox is a bwrap invocation under construction. Mounting the same
// destination twice keeps the last kind.
// Mutable
type Sandbox struct {
	bwrap   string
	options []string
	mounts  []mount
	env     []string
	argv    []string
}

// New starts a sandbox run by the bwrap binary at path, "bwrap" if empty.
func New(path string) *Sandbox {
	return &Sandbox{bwrap: cmp.Or(path, "bwrap")}
}

// Option appends raw bwrap options, e.g. "--unshare-pid".
func (s *Sandbox) Option(opts ...string) *Sandbox {
	s.options = append(s.options, opts...)
	return s
}

// Mount places path at the same location inside the sandbox.
func (s *Sandbox) Mount(kind Mount, path string) *Sandbox {
	path = filepath.Clean(path)
	i := slices.IndexFunc(s.mounts, func(m mount) bool { return m.dest == path })
	if i >= 0 {
		s.mounts[i].kind = kind
	} else {
		s.mounts = append(s.mounts, mount{kind, path})
	}
	return s
}

// Setenv sets a variable inside the sandbox, replacing an earlier value.
func (s *Sandbox) Setenv(key, value string) *Sandbox {
	kv := key + "=" + value
	i := slices.IndexFunc(s.env, func(e string) bool { return strings.HasPrefix(e, key+"=") })
	if i >= 0 {
		s.env[i] = kv
	} else {
		s.env = append(s.env, kv)
	}
	return s
}

// Exec sets the command run inside the sandbox.
func (s *Sandbox) Exec(argv ...string) *Sandbox {
	s.argv = argv
	return s
}

// Argv renders the command line. Mounts are sorted by destination so a
// directory is mounted before anything below it.
func (s *Sandbox) Argv() []string {
	out := append([]string{s.bwrap}, s.options...)

	mounts := slices.Clone(s.mounts)
	slices.SortFunc(mounts, func(a, b mount) int { return strings.Compare(a.dest, b.dest) })
	for _, m := range mounts {
		out = append(out, string(m.kind))
		if !m.kind.synthetic() {
			out = append(out, m.dest)
		}
		out = append(out, m.dest)
	}
	for _, kv := range s.env {
		k, v, _ := strings.Cut(kv, "=")
		out = append(out, "--setenv", k, v)
	}
	if len(s.argv) > 0 {
		out = append(out, "--")
		out = append(out, s.argv...)
	}
	return out
}

// mountFor picks the bind used for a grant. Every bind tolerates a
// missing source, as Landlock does.
func mountFor(g capability.Grant) Mount {
	switch p := filepath.Clean(g.Path); {
	case p == "/proc":
		return Proc
	case p == "/dev" || strings.HasPrefix(p, "/dev/"):
		return DeviceBindTry
	case g.Access.Has(capability.Write) || g.Access.Has(capability.Create):
		return BindTry
	}
	return ReadOnlyTry
}

// FromPolicy maps a sealed policy and a launch onto a bwrap invocation.
func FromPolicy(path string, sealed *capability.Sealed, spec *common.LaunchSpec) *Sandbox {
	s := New(path).Option("--die-with-parent", "--unshare-pid", "--new-session")
	if !sealed.Allows(capability.Inet) {
		s.Option("--unshare-net")
	}
	if spec.Dir != "" {
		s.Option("--chdir", spec.Dir)
	}

	s.Mount(Tmpfs, "/tmp")
	for _, g := range sealed.Grants() {
		s.Mount(mountFor(g), g.Path)
	}
	for _, kv := range spec.Env {
		k, v, _ := strings.Cut(kv, "=")
		s.Setenv(k, v)
	}
	return s.Exec(spec.Argv()...)
}
