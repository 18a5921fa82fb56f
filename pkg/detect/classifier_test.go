package detect

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"glaunch/pkg/common"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func classify(t *testing.T, root string) (*Result, error) {
	t.Helper()
	return NewClassifier(BuiltinRegistry(), nil).Classify(root)
}

func TestBuiltinRegistry(t *testing.T) {
	reg := BuiltinRegistry()
	if len(reg.Engines) != len(common.EngineKinds) {
		t.Errorf("expected %d engines, got %d", len(common.EngineKinds), len(reg.Engines))
	}
	for i, e := range reg.Engines {
		if e.Engine != common.EngineKinds[i] {
			t.Errorf("engine %d: expected %s, got %s", i, common.EngineKinds[i], e.Engine)
		}
	}
	if reg.ManagedMarkers.Engine != common.EngineMono {
		t.Errorf("expected mono markers, got %s", reg.ManagedMarkers.Engine)
	}
	// The content patterns are YAML escapes and must decode to raw bytes.
	if got := reg.Engines[0].Content[0].All[0]; got != "PK\x03\x04" {
		t.Errorf("zip magic decoded as %q", got)
	}
}

func TestLoadRegistryRejectsUnknownEngine(t *testing.T) {
	_, err := LoadRegistry([]byte("engines:\n  - engine: flash\n"))
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestLoadRegistryRejectsCatchAllContent(t *testing.T) {
	const markers = "managed_markers:\n  engine: mono\n"
	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{"no prefix no patterns", "{}", false},
		{"empty all list", "{all: []}", false},
		{"empty pattern", `{all: [""]}`, false},
		{"prefix only", "{prefix: PK}", true},
		{"patterns only", "{all: [conf.lua]}", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := markers + "engines:\n  - engine: love\n    content:\n      - " + tt.content + "\n"
			_, err := LoadRegistry([]byte(src))
			if tt.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Fatal("expected error for signature matching every file")
			}
		})
	}
}

func TestGameGlob(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Slay the Spire", "*slay*the*spire*"},
		{"FEZ", "*fez*"},
		{"Shattered Pixel-Dungeon!", "*shattered*pixel*dungeon*"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := gameGlob(tt.name); got != tt.want {
			t.Errorf("gameGlob(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClassifyByName(t *testing.T) {
	tests := []struct {
		file string
		want common.EngineKind
	}{
		{"desktop-1.0.jar", common.EngineJava},
		{"FNA.dll", common.EngineMono},
		{"MonoGame.Framework.DesktopGL.dll", common.EngineMono},
		{"hedon.ipk3", common.EngineGZDoom},
		{"hlboot.dat", common.EngineHashLink},
		{"data.pck", common.EngineGodot},
		{"game.love", common.EngineLove},
		{"package.nw", common.EngineNWJS},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "README.txt", []byte("hello"))
			writeFile(t, root, tt.file, []byte("x"))
			res, err := classify(t, root)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if res.Kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.Kind)
			}
			if res.Evidence.Path != tt.file {
				t.Errorf("expected evidence %s, got %s", tt.file, res.Evidence.Path)
			}
		})
	}
}

func TestClassifyTraversalOrderBeatsRegistryOrder(t *testing.T) {
	root := t.TempDir()
	// java is registered before godot, but a/ sorts before b/.
	writeFile(t, root, "a/data.pck", []byte("x"))
	writeFile(t, root, "b/game.jar", []byte("x"))

	for i := 0; i < 3; i++ {
		res, err := classify(t, root)
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if res.Kind != common.EngineGodot || res.Evidence.Path != "a/data.pck" {
			t.Fatalf("run %d: unexpected result %s", i, res)
		}
	}
}

func TestClassifyDepthBound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/b/game.jar", []byte("x"))
	res, err := classify(t, root)
	if err != nil || res.Evidence.Path != "a/b/game.jar" {
		t.Fatalf("expected file at depth 3 to match, got %v, %v", res, err)
	}

	root = t.TempDir()
	writeFile(t, root, "a/b/c/game.jar", []byte("x"))
	if _, err := classify(t, root); !errors.Is(err, common.ErrClassification) {
		t.Fatalf("expected file at depth 4 to be ignored, got %v", err)
	}
}

func TestClassifyMarkers(t *testing.T) {
	for _, rel := range []string{"Microsoft.Xna.Framework.dll", "lib/Microsoft.Xna.Framework.Game.dll"} {
		t.Run(rel, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, rel, []byte("x"))
			res, err := classify(t, root)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if res.Kind != common.EngineMono || res.Evidence.Path != rel {
				t.Errorf("unexpected result %s", res)
			}
		})
	}
}

func TestClassifyNameBeatsContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", []byte("IWAD"))
	writeFile(t, root, "z.pck", []byte("x"))
	res, err := classify(t, root)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Kind != common.EngineGodot {
		t.Errorf("filename pass should win, got %s", res)
	}
}

func TestClassifyByContent(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want common.EngineKind
	}{
		{"iwad", []byte("IWAD\x00\x00\x00\x00"), common.EngineGZDoom},
		{"hashlink", []byte("HLB\x04rest"), common.EngineHashLink},
		{"embedded pck", append(bytes.Repeat([]byte{0x7f}, 1000), "GDPC"...), common.EngineGodot},
		{"fused love", []byte("MZ....PK\x03\x04....main.lua...."), common.EngineLove},
		{"jar without suffix", []byte("PK\x03\x04....META-INF/MANIFEST.MF"), common.EngineJava},
		{"xna assembly", []byte("MZ Microsoft.Xna.Framework.Game"), common.EngineMono},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, "game", tt.data)
			res, err := classify(t, root)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if res.Kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res)
			}
		})
	}
}

func TestClassifyContentAcrossChunks(t *testing.T) {
	root := t.TempDir()
	data := bytes.Repeat([]byte{'.'}, sniffChunk+64)
	copy(data[sniffChunk-2:], "GDPC")
	writeFile(t, root, "game", data)

	res, err := classify(t, root)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Kind != common.EngineGodot {
		t.Errorf("expected godot, got %s", res)
	}
}

func TestClassifyScanLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "game", append(bytes.Repeat([]byte{'.'}, 100), "GDPC"...))

	c := NewClassifier(BuiltinRegistry(), nil).WithScanLimit(16)
	if _, err := c.Classify(root); !errors.Is(err, common.ErrClassification) {
		t.Fatalf("expected pattern past the limit to be missed, got %v", err)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "readme.txt", []byte("nothing to see"))
	writeFile(t, root, "data/level1.dat", []byte("still nothing"))

	res, err := classify(t, root)
	if res != nil {
		t.Errorf("expected no result, got %s", res)
	}
	if !errors.Is(err, common.ErrClassification) {
		t.Fatalf("expected ErrClassification, got %v", err)
	}
	var se *common.StageError
	if !errors.As(err, &se) || se.Stage != common.StageClassify || se.Path != root {
		t.Errorf("expected classify stage error for %s, got %#v", root, err)
	}
}

func TestClassifyMissingRoot(t *testing.T) {
	_, err := classify(t, filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, common.ErrClassification) {
		t.Errorf("a missing root is not a classification failure: %v", err)
	}
}
