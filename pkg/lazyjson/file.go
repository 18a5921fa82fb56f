// Package lazyjson keeps a JSON document on disk and reads it on first use.
// Writes go through a temporary file in the same directory and a rename.
package lazyjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
)

// ErrMissing is returned by Get when the file does not exist and the
// document was opened with Required.
var ErrMissing = errors.New("document missing")

// File is one JSON document of type T.
// Mutable
type File[T any] struct {
	path string
	cfg  settings[T]

	mu    sync.Mutex
	value *T
	read  bool
	fresh bool // value came from the default, nothing on disk yet
}

type settings[T any] struct {
	indent    string
	perm      fs.FileMode
	required  bool
	commented bool
	fallback  func() *T
}

// Option tunes how a File is read and written.
type Option[T any] func(*settings[T])

// Indent sets the indentation of written files, "" for compact output.
func Indent[T any](indent string) Option[T] {
	return func(s *settings[T]) { s.indent = indent }
}

// Perm sets the mode of written files.
func Perm[T any](perm fs.FileMode) Option[T] {
	return func(s *settings[T]) { s.perm = perm }
}

// Required makes a missing file an error instead of the default value.
func Required[T any]() Option[T] {
	return func(s *settings[T]) { s.required = true }
}

// Commented accepts comments and trailing commas when reading.
// Written files are plain JSON.
func Commented[T any]() Option[T] {
	return func(s *settings[T]) { s.commented = true }
}

// Default supplies the value of a missing file. Without it a zero T is used.
func Default[T any](fn func() *T) Option[T] {
	return func(s *settings[T]) { s.fallback = fn }
}

// Open returns a File for path. Nothing is read until Get or Update.
func Open[T any](path string, opts ...Option[T]) *File[T] {
	f := &File[T]{path: path, cfg: settings[T]{indent: "  ", perm: 0o644}}
	for _, opt := range opts {
		opt(&f.cfg)
	}
	return f
}

// Path is the location of the document.
func (f *File[T]) Path() string { return f.path }

// Get returns the document, reading it the first time.
func (f *File[T]) Get() (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensure(); err != nil {
		return nil, err
	}
	return f.value, nil
}

// Update applies fn to the document and writes it back. The file is left
// untouched when fn fails.
func (f *File[T]) Update(fn func(*T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensure(); err != nil {
		return err
	}
	if err := fn(f.value); err != nil {
		return err
	}
	if err := f.write(); err != nil {
		return err
	}
	f.fresh = false
	return nil
}

// Stored reports whether the document has been read from or written to disk,
// as opposed to being a default that was never saved.
func (f *File[T]) Stored() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read && !f.fresh
}

func (f *File[T]) ensure() error {
	if f.read {
		return nil
	}
	raw, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if f.cfg.required {
			return fmt.Errorf("%s: %w", f.path, ErrMissing)
		}
		f.value = new(T)
		if f.cfg.fallback != nil {
			f.value = f.cfg.fallback()
		}
		f.read, f.fresh = true, true
		return nil
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	if f.cfg.commented {
		raw = jsonc.ToJSON(raw)
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	f.value, f.read = v, true
	return nil
}

func (f *File[T]) write() error {
	raw, err := json.MarshalIndent(f.value, "", f.cfg.indent)
	if f.cfg.indent == "" {
		raw, err = json.Marshal(f.value)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.path, err)
	}
	raw = append(raw, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), f.cfg.perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
