// Package common provides the data model shared by the launch pipeline:
// engine kinds, classification evidence, game identities, transform requests
// and the final launch specification.
package common

import (
	"fmt"
	"strings"
)

// EngineKind identifies a supported runtime family.
type EngineKind string

const (
	// EngineJava is a JVM game (libGDX, LWJGL, packr bundles).
	EngineJava EngineKind = "java"
	// EngineMono is a .NET game built on FNA, MonoGame or XNA.
	EngineMono EngineKind = "mono"
	// EngineGZDoom is a GZDoom based game shipped as an IWAD package.
	EngineGZDoom EngineKind = "gzdoom"
	// EngineHashLink is a HashLink bytecode game.
	EngineHashLink EngineKind = "hashlink"
	// EngineGodot is a Godot game shipped with a .pck data pack.
	EngineGodot EngineKind = "godot"
	// EngineLove is a LÖVE game.
	EngineLove EngineKind = "love"
	// EngineNWJS is an HTML5 game packaged for NW.js.
	EngineNWJS EngineKind = "nwjs"
)

// EngineKinds lists every supported engine in registration order.
var EngineKinds = []EngineKind{
	EngineJava,
	EngineMono,
	EngineGZDoom,
	EngineHashLink,
	EngineGodot,
	EngineLove,
	EngineNWJS,
}

// ParseEngineKind converts a manifest name into an EngineKind.
func ParseEngineKind(s string) (EngineKind, error) {
	for _, k := range EngineKinds {
		if string(k) == strings.ToLower(s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown engine: %s", s)
}

func (k EngineKind) String() string { return string(k) }

// EvidenceFile records the file that decided a classification and the
// signature it matched.
// Immutable
type EvidenceFile struct {
	// Path is relative to the classified root.
	Path string
	// Signature is the name or content pattern that matched.
	Signature string
}

func (e EvidenceFile) String() string {
	return fmt.Sprintf("%s (%s)", e.Path, e.Signature)
}

// GameSource describes how a game name was derived.
type GameSource string

const (
	GameSourceKnown   GameSource = "known-games"
	GameSourceAdapter GameSource = "adapter"
	GameSourceStore   GameSource = "store-metadata"
	GameSourceELF     GameSource = "elf"
	GameSourcePE32    GameSource = "pe32"
	GameSourceUnknown GameSource = "unknown"
)

// UnknownGame is the name used when nothing identifies the game.
const UnknownGame = "unknown"

// GameIdentity is the display name of the game being launched.
// It is only used for logging and naming artifacts.
type GameIdentity struct {
	Name     string
	Source   GameSource
	Evidence string
}

// LaunchSpec is the final process invocation produced by an engine adapter.
type LaunchSpec struct {
	// Exe is the executable to run, absolute or resolved through PATH.
	Exe string
	// Args does not include argv0.
	Args []string
	// Env holds KEY=VALUE assignments overlaid on the inherited environment,
	// in the order they are applied.
	Env []string
	// Dir is the working directory of the child.
	Dir string
}

// SetEnv appends or replaces an assignment, keeping the original position.
func (s *LaunchSpec) SetEnv(key, value string) {
	entry := key + "=" + value
	for i, e := range s.Env {
		if strings.HasPrefix(e, key+"=") {
			s.Env[i] = entry
			return
		}
	}
	s.Env = append(s.Env, entry)
}

// Argv returns the executable followed by its arguments.
func (s *LaunchSpec) Argv() []string {
	return append([]string{s.Exe}, s.Args...)
}

// MergeEnv overlays the spec environment on base.
func (s *LaunchSpec) MergeEnv(base []string) []string {
	merged := make([]string, 0, len(base)+len(s.Env))
	overridden := make(map[string]bool, len(s.Env))
	for _, e := range s.Env {
		k, _, _ := strings.Cut(e, "=")
		overridden[k] = true
	}
	for _, e := range base {
		k, _, _ := strings.Cut(e, "=")
		if !overridden[k] {
			merged = append(merged, e)
		}
	}
	return append(merged, s.Env...)
}
