package detect

import (
	_ "embed"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"glaunch/pkg/common"
)

//go:embed registry.yaml
var builtinRegistry []byte

// NameSignature matches a file's base name. Exactly one field is set.
type NameSignature struct {
	Name   string `yaml:"name,omitempty"`
	Suffix string `yaml:"suffix,omitempty"`
	Glob   string `yaml:"glob,omitempty"`
}

// Match compares case-insensitively.
func (s NameSignature) Match(base string) bool {
	base = strings.ToLower(base)
	switch {
	case s.Name != "":
		return base == strings.ToLower(s.Name)
	case s.Suffix != "":
		return strings.HasSuffix(base, strings.ToLower(s.Suffix))
	case s.Glob != "":
		ok, _ := path.Match(strings.ToLower(s.Glob), base)
		return ok
	}
	return false
}

func (s NameSignature) String() string {
	switch {
	case s.Name != "":
		return "name " + s.Name
	case s.Suffix != "":
		return "suffix " + s.Suffix
	default:
		return "glob " + s.Glob
	}
}

// ContentSignature matches file bytes. Prefix must appear at offset 0 and
// every entry of All must appear somewhere in the file.
type ContentSignature struct {
	Prefix string   `yaml:"prefix,omitempty"`
	All    []string `yaml:"all,omitempty"`
}

func (s ContentSignature) String() string {
	var parts []string
	if s.Prefix != "" {
		parts = append(parts, fmt.Sprintf("prefix %q", s.Prefix))
	}
	for _, p := range s.All {
		parts = append(parts, fmt.Sprintf("%q", p))
	}
	return "content " + strings.Join(parts, " ")
}

// EngineSignatures groups the signatures of one engine.
type EngineSignatures struct {
	Engine  common.EngineKind  `yaml:"engine"`
	Names   []NameSignature    `yaml:"names"`
	Content []ContentSignature `yaml:"content"`
}

// MarkerSet lists files whose presence alone identifies an engine, each
// checked under every prefix.
type MarkerSet struct {
	Engine   common.EngineKind `yaml:"engine"`
	Names    []string          `yaml:"names"`
	Prefixes []string          `yaml:"prefixes"`
}

// Registry is the static detection data.
// Immutable
type Registry struct {
	Engines        []EngineSignatures `yaml:"engines"`
	ManagedMarkers MarkerSet          `yaml:"managed_markers"`
	KnownGames     []string           `yaml:"known_games"`
}

// LoadRegistry parses a registry document.
func LoadRegistry(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	for _, e := range append(r.Engines, EngineSignatures{Engine: r.ManagedMarkers.Engine}) {
		if _, err := common.ParseEngineKind(string(e.Engine)); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
	}
	for _, e := range r.Engines {
		for i, sig := range e.Content {
			if err := sig.validate(); err != nil {
				return nil, fmt.Errorf("registry: %s content #%d: %w", e.Engine, i+1, err)
			}
		}
	}
	return &r, nil
}

// validate rejects signatures that would match every file.
func (s ContentSignature) validate() error {
	if s.Prefix == "" && len(s.All) == 0 {
		return errors.New("signature has neither prefix nor patterns")
	}
	if slices.Contains(s.All, "") {
		return errors.New("empty pattern")
	}
	return nil
}

// BuiltinRegistry returns the registry compiled into the binary.
func BuiltinRegistry() *Registry {
	r, err := LoadRegistry(builtinRegistry)
	if err != nil {
		panic(err)
	}
	return r
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// gameGlob turns "Slay the Spire" into "*slay*the*spire*".
func gameGlob(name string) string {
	tokens := nonAlnum.Split(strings.ToLower(name), -1)
	var kept []string
	for _, t := range tokens {
		if t != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "*" + strings.Join(kept, "*") + "*"
}
