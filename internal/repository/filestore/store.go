// Package filestore keeps uploaded image binaries on the local filesystem
// under a single root directory.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrExists is returned when a destination exists and overwrite is off.
var ErrExists = errors.New("filestore: destination exists")

// ErrOutsideRoot is returned for paths escaping the store root.
var ErrOutsideRoot = errors.New("filestore: path escapes root")

const sniffLen = 512

// Store is a directory-backed file store. Paths are relative to the root.
type Store struct {
	root string
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: root dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

// Path resolves rel under the root.
func (s *Store) Path(rel string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return p, nil
}

// EnsureDir creates the directory rel and its parents.
func (s *Store) EnsureDir(rel string) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", rel, err)
	}
	return nil
}

// Put streams r to rel through a temporary file and renames it into place.
func (s *Store) Put(rel string, r io.Reader, overwrite bool) (int64, error) {
	dst, err := s.Path(rel)
	if err != nil {
		return 0, err
	}
	if !overwrite && exists(dst) {
		return 0, fmt.Errorf("%w: %s", ErrExists, rel)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("open tmp: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return written, nil
}

// Move relocates the absolute file src to rel.
func (s *Store) Move(src, rel string, overwrite bool) error {
	dst, err := s.Path(rel)
	if err != nil {
		return err
	}
	if !overwrite && exists(dst) {
		return fmt.Errorf("%w: %s", ErrExists, rel)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Cross-device: copy then remove.
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer func() { _ = in.Close() }()
	if _, err := s.Put(rel, in, true); err != nil {
		return err
	}
	return os.Remove(src)
}

// Open returns the file at rel for reading. A missing file is fs.ErrNotExist.
func (s *Store) Open(rel string) (*os.File, error) {
	p, err := s.Path(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(p))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	return f, nil
}

// Remove deletes the file at rel. A missing file is not an error.
func (s *Store) Remove(rel string) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	return nil
}

// DetectMIME sniffs the content type of the file at rel.
func (s *Store) DetectMIME(rel string) (string, error) {
	f, err := s.Open(rel)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	if n == 0 {
		return "application/octet-stream", nil
	}
	return http.DetectContentType(buf[:n]), nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
