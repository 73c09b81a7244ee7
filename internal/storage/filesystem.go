package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"schemavault/internal/core"
)

// FileSystemStore is a local-filesystem implementation of core.Store,
// rooted at a project directory. All paths are interpreted relative to
// the root. Writes are atomic (temp file + rename) so a crashed writer
// never leaves a half-written snapshot or manifest behind.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a store rooted at the given directory,
// creating it if necessary.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, &PathError{Op: "mkdir", Path: root, Err: err}
	}
	return &FileSystemStore{root: root}, nil
}

// Root returns the root directory of the store.
func (s *FileSystemStore) Root() string { return s.root }

func (s *FileSystemStore) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Read returns the file content at path, or (nil, nil) if it does not exist.
func (s *FileSystemStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PathError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Write stores data at path atomically, creating parent directories as needed.
func (s *FileSystemStore) Write(path string, data []byte) error {
	destPath := s.abs(path)
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PathError{Op: "mkdir", Path: path, Err: err}
	}

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &PathError{Op: "write", Path: path, Err: err}
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return &PathError{Op: "write", Path: path, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &PathError{Op: "write", Path: path, Err: err}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return &PathError{Op: "write", Path: path, Err: fmt.Errorf("renaming temp file: %w", err)}
	}

	success = true
	return nil
}

// Exists reports whether a file exists at path.
func (s *FileSystemStore) Exists(path string) (bool, error) {
	_, err := os.Stat(s.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &PathError{Op: "read", Path: path, Err: err}
	}
	return true, nil
}

// List returns the names of entries directly under dir.
// A missing directory yields an empty list.
func (s *FileSystemStore) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(s.abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PathError{Op: "list", Path: dir, Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Remove deletes the file at path. Removing a missing file is a no-op.
func (s *FileSystemStore) Remove(path string) error {
	if err := os.Remove(s.abs(path)); err != nil && !os.IsNotExist(err) {
		return &PathError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// MkdirAll creates the directory at path and any missing parents.
func (s *FileSystemStore) MkdirAll(path string) error {
	if err := os.MkdirAll(s.abs(path), 0755); err != nil {
		return &PathError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// Compile-time check that FileSystemStore implements core.Store
var _ core.Store = (*FileSystemStore)(nil)
