package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type entry struct {
	name    string
	content string
}

var gameFiles = []entry{
	{"main.lua", "love.graphics.print('hi')"},
	{"assets/sprites/player.png", "png"},
}

func TestExtract(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		file       string
		compressor func(io.Writer) io.WriteCloser
	}{
		{"game.tar", nil},
		{"game.tar.gz", func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }},
		{"game.tar.zst", func(w io.Writer) io.WriteCloser {
			e, _ := zstd.NewWriter(w)
			return e
		}},
		{"game.tar.lz4", func(w io.Writer) io.WriteCloser { return lz4.NewWriter(w) }},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(tempDir, tt.file)
			createTar(t, path, tt.compressor, gameFiles)
			testExtraction(t, path)
		})
	}

	for _, name := range []string{"game.zip", "game.love", "desktop.jar"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tempDir, name)
			f, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}
			writeZip(t, f, gameFiles)
			f.Close()
			testExtraction(t, path)
		})
	}
}

func TestExtractFusedExecutable(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "game.exe")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("MZ this is the love runtime\x00\x00\x00")); err != nil {
		t.Fatal(err)
	}
	writeZip(t, f, gameFiles)
	f.Close()

	dest := filepath.Join(tempDir, "out")
	if _, err := Extract(path, dest, HandlerZip); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	checkFile(t, filepath.Join(dest, "main.lua"), gameFiles[0].content)
}

func TestExtractRejectsTraversal(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "evil.tar")
	createTar(t, path, nil, []entry{{"../escape.txt", "x"}})

	_, err := Extract(path, filepath.Join(tempDir, "out"), HandlerTar)
	if err == nil {
		t.Fatal("expected error for path outside destination")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("file escaped the destination")
	}
}

func TestExtractSymlinks(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "links.tar")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(f)
	write := func(h *tar.Header, body string) {
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if body != "" {
			if _, err := tw.Write([]byte(body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	write(&tar.Header{Name: "lib/libfoo.so.1", Mode: 0o644, Size: 3, Typeflag: tar.TypeReg}, "elf")
	write(&tar.Header{Name: "lib/libfoo.so", Linkname: "libfoo.so.1", Typeflag: tar.TypeSymlink}, "")
	tw.Close()
	f.Close()

	dest := filepath.Join(tempDir, "out")
	st, err := Extract(path, dest, HandlerTar)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if st.Files != 1 || st.Bytes != 3 {
		t.Errorf("unexpected stats %+v", st)
	}
	checkFile(t, filepath.Join(dest, "lib", "libfoo.so"), "elf")

	evil := filepath.Join(tempDir, "evil.tar")
	f, err = os.Create(evil)
	if err != nil {
		t.Fatal(err)
	}
	tw = tar.NewWriter(f)
	write(&tar.Header{Name: "passwd", Linkname: "../../etc/passwd", Typeflag: tar.TypeSymlink}, "")
	tw.Close()
	f.Close()
	if _, err := Extract(evil, filepath.Join(tempDir, "out2"), HandlerTar); err == nil {
		t.Error("expected error for link outside destination")
	}
}

func TestHandlerFor(t *testing.T) {
	tests := []struct {
		name string
		want Handler
		ok   bool
	}{
		{"game.tar.gz", HandlerTarGz, true},
		{"game.TGZ", HandlerTarGz, true},
		{"game.tar.lz4", HandlerTarLz4, true},
		{"game.tar", HandlerTar, true},
		{"desktop-1.0.jar", HandlerZip, true},
		{"game.love", HandlerZip, true},
		{"game.rar", "", false},
	}
	for _, tt := range tests {
		got, ok := HandlerFor(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("HandlerFor(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
	if IsBuiltin("innoextract") {
		t.Error("innoextract is not builtin")
	}
}

func writeZip(t *testing.T, w io.Writer, entries []entry) {
	t.Helper()
	zw := zip.NewWriter(w)
	for _, e := range entries {
		f, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(e.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func createTar(t *testing.T, path string, compressor func(io.Writer) io.WriteCloser, entries []entry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var w io.WriteCloser = f
	if compressor != nil {
		w = compressor(f)
		defer w.Close()
	}

	tw := tar.NewWriter(w)
	defer tw.Close()

	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0o600,
			Size:     int64(len(e.content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.content)); err != nil {
			t.Fatal(err)
		}
	}
}

func testExtraction(t *testing.T, archivePath string) {
	t.Helper()
	h, ok := HandlerFor(archivePath)
	if !ok {
		t.Fatalf("no handler for %s", archivePath)
	}
	dest := filepath.Join(filepath.Dir(archivePath), "extract_"+filepath.Base(archivePath))
	st, err := Extract(archivePath, dest, h)
	if err != nil {
		t.Fatalf("Extract failed for %s: %v", archivePath, err)
	}
	if st.Files != len(gameFiles) {
		t.Errorf("expected %d files, got %d", len(gameFiles), st.Files)
	}
	for _, e := range gameFiles {
		checkFile(t, filepath.Join(dest, filepath.FromSlash(e.name)), e.content)
	}
}

func checkFile(t *testing.T, path, content string) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read extracted file %s: %v", path, err)
	}
	if string(b) != content {
		t.Errorf("File %s content mismatch. Want %q, got %q", path, content, string(b))
	}
}
