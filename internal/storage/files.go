package storage

import (
	"os"
	"path"
	"path/filepath"
)

// MoveInto relocates a staged file into a directory under the store root,
// creating the directory as needed, and returns the file's new relative
// path.
func (s *Store) MoveInto(dir, name, srcPath string) (string, error) {
	if err := s.EnsureDir(dir); err != nil {
		return "", err
	}

	if err := os.Rename(srcPath, s.FilePath(dir, name)); err != nil {
		return "", err
	}

	return path.Join(dir, name), nil
}

// RemovePath unlinks a file by its relative path
func (s *Store) RemovePath(rel string) error {
	return os.Remove(filepath.Join(s.Root, filepath.FromSlash(rel)))
}
