// Package detect maps a game directory to the engine that produced it and
// to a display name for the game.
package detect

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"glaunch/pkg/common"
)

const (
	// DefaultMaxDepth bounds how deep below the root files are enumerated.
	DefaultMaxDepth = 3
	// DefaultScanLimit caps how many bytes of one file the content pass reads.
	DefaultScanLimit = 1 << 30
)

// Result is a successful classification.
// Immutable
type Result struct {
	Kind     common.EngineKind
	Evidence common.EvidenceFile
}

func (r *Result) String() string {
	return fmt.Sprintf("%s via %s", r.Kind, r.Evidence)
}

// pass is one detection step over the enumerated files. It returns nil when
// nothing matched.
type pass struct {
	name string
	run  func(root string, files []string) (*Result, error)
}

// Classifier runs the ordered detection passes.
// Immutable
type Classifier struct {
	reg       *Registry
	maxDepth  int
	scanLimit int64
	log       *slog.Logger
}

// NewClassifier creates a classifier over reg.
func NewClassifier(reg *Registry, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		reg:       reg,
		maxDepth:  DefaultMaxDepth,
		scanLimit: DefaultScanLimit,
		log:       log,
	}
}

// WithScanLimit returns a copy reading at most n bytes per file in the
// content pass.
func (c *Classifier) WithScanLimit(n int64) *Classifier {
	cp := *c
	cp.scanLimit = n
	return &cp
}

// Classify returns the engine for the tree at root. Passes run in a fixed
// order and the first one that matches decides. When none match the error
// wraps common.ErrClassification.
func (c *Classifier) Classify(root string) (*Result, error) {
	files, err := c.enumerate(root)
	if err != nil {
		return nil, common.Fail(common.StageClassify, root, err)
	}
	c.log.Debug("enumerated files", "root", root, "count", len(files))

	passes := []pass{
		{"filename", c.byName},
		{"markers", c.byMarker},
		{"content", c.byContent},
	}
	for _, p := range passes {
		res, err := p.run(root, files)
		if err != nil {
			return nil, common.Fail(common.StageClassify, root, err)
		}
		if res != nil {
			c.log.Debug("classified", "pass", p.name, "engine", res.Kind, "evidence", res.Evidence.Path)
			return res, nil
		}
	}
	return nil, common.Fail(common.StageClassify, root, common.ErrClassification)
}

// enumerate lists regular files under root, relative to it, in lexical
// order, at most maxDepth path elements deep.
func (c *Classifier) enumerate(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			c.log.Debug("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		depth := strings.Count(filepath.ToSlash(rel), "/") + 1
		if d.IsDir() {
			if depth >= c.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate: %w", err)
	}
	return files, nil
}

func (c *Classifier) byName(_ string, files []string) (*Result, error) {
	for _, f := range files {
		base := filepath.Base(f)
		for _, e := range c.reg.Engines {
			for _, sig := range e.Names {
				if sig.Match(base) {
					return &Result{
						Kind:     e.Engine,
						Evidence: common.EvidenceFile{Path: f, Signature: sig.String()},
					}, nil
				}
			}
		}
	}
	return nil, nil
}

func (c *Classifier) byMarker(root string, _ []string) (*Result, error) {
	m := c.reg.ManagedMarkers
	for _, name := range m.Names {
		for _, prefix := range m.Prefixes {
			rel := prefix + name
			info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			return &Result{
				Kind:     m.Engine,
				Evidence: common.EvidenceFile{Path: rel, Signature: "marker " + name},
			}, nil
		}
	}
	return nil, nil
}

func (c *Classifier) byContent(root string, files []string) (*Result, error) {
	var sigs []ContentSignature
	var owners []common.EngineKind
	for _, e := range c.reg.Engines {
		for _, s := range e.Content {
			sigs = append(sigs, s)
			owners = append(owners, e.Engine)
		}
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	sn := newSniffer(sigs)
	for _, f := range files {
		idx, err := sn.Match(filepath.Join(root, filepath.FromSlash(f)), c.scanLimit)
		if err != nil {
			c.log.Debug("content scan failed", "file", f, "error", err)
			continue
		}
		if idx >= 0 {
			return &Result{
				Kind:     owners[idx],
				Evidence: common.EvidenceFile{Path: f, Signature: sigs[idx].String()},
			}, nil
		}
	}
	return nil, nil
}
