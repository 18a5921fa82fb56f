// Package capability assembles the least-privilege policy a launch needs and
// asks the operating system to enforce it.
//
// A Builder collects path grants and syscall promises from several
// contributors (platform defaults, the working directory, engine adapters,
// user settings). Seal converts it into an immutable Sealed policy exactly
// once; any later mutation is a programming error and panics with a
// *MisuseError. An Enforcer applies a Sealed policy to the current process.
//
// Grants on a directory cover everything beneath it. Overlapping grants are
// never overridden: the effective access for a path is the union of every
// grant on the path or on a directory containing it.
package capability

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MisuseError reports a policy mutation after sealing or a repeated seal.
type MisuseError struct {
	Op   string
	Path string
}

func (e *MisuseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("capability policy misuse: %s", e.Op)
	}
	return fmt.Sprintf("capability policy misuse: %s %s", e.Op, e.Path)
}

// Builder accumulates grants until sealed.
// Mutable
type Builder struct {
	order    []string
	grants   map[string]Access
	promises map[Promise]bool
	sealed   bool
}

// NewBuilder returns an empty builder. Stdio is always allowed.
func NewBuilder() *Builder {
	return &Builder{
		grants:   make(map[string]Access),
		promises: map[Promise]bool{Stdio: true},
	}
}

// Add grants access to path. Adding the same path again unions the modes.
// Relative paths are resolved against the current directory.
func (b *Builder) Add(path string, access Access) {
	if b.sealed {
		panic(&MisuseError{Op: "add after seal", Path: path})
	}
	p, err := filepath.Abs(path)
	if err != nil {
		p = filepath.Clean(path)
	}
	if _, ok := b.grants[p]; !ok {
		b.order = append(b.order, p)
	}
	b.grants[p] |= access
}

// AddGrants adds each grant in order.
func (b *Builder) AddGrants(grants ...Grant) {
	for _, g := range grants {
		b.Add(g.Path, g.Access)
	}
}

// Allow adds syscall promises.
func (b *Builder) Allow(promises ...Promise) {
	if b.sealed {
		panic(&MisuseError{Op: "allow after seal", Path: strings.Join(promiseStrings(promises), " ")})
	}
	for _, p := range promises {
		b.promises[p] = true
	}
}

// Sealed reports whether Seal has been called.
func (b *Builder) Sealed() bool { return b.sealed }

// Seal freezes the builder and returns the enforceable policy.
// Calling Seal twice panics.
func (b *Builder) Seal() *Sealed {
	if b.sealed {
		panic(&MisuseError{Op: "seal twice"})
	}
	b.sealed = true

	s := &Sealed{grants: make([]Grant, 0, len(b.order))}
	for _, p := range b.order {
		s.grants = append(s.grants, Grant{Path: p, Access: b.grants[p]})
	}
	for _, p := range promiseOrder {
		if b.promises[p] {
			s.promises = append(s.promises, p)
		}
	}
	return s
}

// Sealed is an immutable, fully assembled policy.
// Immutable
type Sealed struct {
	grants   []Grant
	promises []Promise
}

// Grants returns the grants in registration order.
func (s *Sealed) Grants() []Grant {
	return append([]Grant(nil), s.grants...)
}

// Promises returns the allowed promises in canonical order.
func (s *Sealed) Promises() []Promise {
	return append([]Promise(nil), s.promises...)
}

// Allows reports whether promise p was granted.
func (s *Sealed) Allows(p Promise) bool {
	for _, q := range s.promises {
		if q == p {
			return true
		}
	}
	return false
}

// Effective returns the union of access granted on path and on every
// directory containing it.
func (s *Sealed) Effective(path string) Access {
	p, err := filepath.Abs(path)
	if err != nil {
		p = filepath.Clean(path)
	}
	var a Access
	for _, g := range s.grants {
		if covers(g.Path, p) {
			a |= g.Access
		}
	}
	return a
}

// PromiseString renders the promises as a pledge(2) argument.
func (s *Sealed) PromiseString() string {
	return strings.Join(promiseStrings(s.promises), " ")
}

func covers(prefix, path string) bool {
	if prefix == path || prefix == "/" {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

func promiseStrings(ps []Promise) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
