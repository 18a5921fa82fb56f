// Package archive unpacks the archive formats game bundles ship in.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Handler names the unpacker for an archive.
type Handler string

const (
	// HandlerZip covers zip based containers: jar, love, pk3 and executables
	// with a zip appended to them.
	HandlerZip    Handler = "zip"
	HandlerTar    Handler = "tar"
	HandlerTarGz  Handler = "tar.gz"
	HandlerTarZst Handler = "tar.zst"
	HandlerTarLz4 Handler = "tar.lz4"
)

var suffixes = []struct {
	suffix  string
	handler Handler
}{
	{".tar.gz", HandlerTarGz},
	{".tgz", HandlerTarGz},
	{".tar.zst", HandlerTarZst},
	{".tar.lz4", HandlerTarLz4},
	{".tar", HandlerTar},
	{".zip", HandlerZip},
	{".jar", HandlerZip},
	{".love", HandlerZip},
	{".pk3", HandlerZip},
	{".ipk3", HandlerZip},
}

// HandlerFor picks a handler from a file name.
func HandlerFor(name string) (Handler, bool) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.handler, true
		}
	}
	return "", false
}

// IsBuiltin reports whether Extract can unpack h without an external tool.
func IsBuiltin(h Handler) bool {
	switch h {
	case HandlerZip, HandlerTar, HandlerTarGz, HandlerTarZst, HandlerTarLz4:
		return true
	}
	return false
}

// Stats summarises an extraction.
type Stats struct {
	Files int
	Bytes int64
}

// Extract unpacks src into dest with handler h.
func Extract(src, dest string, h Handler) (Stats, error) {
	if h == HandlerZip {
		return extractZip(src, dest)
	}

	f, err := os.Open(src)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch h {
	case HandlerTarGz:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzr.Close()
		r = gzr
	case HandlerTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case HandlerTarLz4:
		r = lz4.NewReader(f)
	case HandlerTar:
	default:
		return Stats{}, fmt.Errorf("unsupported archive handler %q for %s", h, src)
	}

	return extractTar(r, dest)
}

func extractZip(src, dest string) (Stats, error) {
	// zip.OpenReader locates the central directory from the end, so an
	// archive appended to an executable opens as well.
	r, err := zip.OpenReader(src)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer r.Close()

	var st Stats
	for _, f := range r.File {
		n, err := extractFile(f.Name, f.FileInfo(), dest, func() (io.ReadCloser, error) {
			return f.Open()
		})
		if err != nil {
			return st, err
		}
		st.add(f.FileInfo(), n)
	}
	return st, nil
}

func extractTar(r io.Reader, dest string) (Stats, error) {
	var st Stats
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("failed to read tar header: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeSymlink:
			if err := extractSymlink(header.Name, header.Linkname, dest); err != nil {
				return st, err
			}
			continue
		case tar.TypeDir, tar.TypeReg:
		default:
			continue
		}

		n, err := extractFile(header.Name, header.FileInfo(), dest, func() (io.ReadCloser, error) {
			return io.NopCloser(tr), nil
		})
		if err != nil {
			return st, err
		}
		st.add(header.FileInfo(), n)
	}
	return st, nil
}

func (s *Stats) add(info os.FileInfo, n int64) {
	if !info.IsDir() {
		s.Files++
		s.Bytes += n
	}
}

// securePath joins name onto dest and rejects results outside dest.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return target, nil
}

func extractSymlink(name, linkname, dest string) error {
	target, err := securePath(dest, name)
	if err != nil {
		return err
	}
	resolved := filepath.Join(filepath.Dir(target), linkname)
	root := filepath.Clean(dest)
	if filepath.IsAbs(linkname) || (resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator))) {
		return fmt.Errorf("illegal link target in archive: %s -> %s", name, linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", target, err)
	}
	os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", target, err)
	}
	return nil
}

// extractFile writes one entry and returns the bytes written.
func extractFile(name string, info os.FileInfo, dest string, opener func() (io.ReadCloser, error)) (int64, error) {
	target, err := securePath(dest, name)
	if err != nil {
		return 0, err
	}

	if info.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", target, err)
		}
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", target, err)
	}

	mode := info.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", target, err)
	}
	defer f.Close()

	rc, err := opener()
	if err != nil {
		return 0, fmt.Errorf("failed to open archive entry %s: %w", name, err)
	}
	defer rc.Close()

	n, err := io.Copy(f, rc)
	if err != nil {
		return n, fmt.Errorf("failed to write file %s: %w", target, err)
	}
	return n, nil
}
