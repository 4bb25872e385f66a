package storage

import (
	"os"
	"path"
	"path/filepath"
)

// ArchiveDirName is the reserved subdirectory closed claim periods move into
const ArchiveDirName = "archive"

// MoveToArchive moves one file from dir into dir's archive subdirectory,
// creating the subdirectory on first use. Returns the file's new doc key
// relative to dir.
func (s *Store) MoveToArchive(dir, name string) (string, error) {
	archiveDir := path.Join(dir, ArchiveDirName)
	if err := os.MkdirAll(s.DirPath(archiveDir), 0o755); err != nil {
		return "", err
	}

	src := s.FilePath(dir, name)
	dst := filepath.Join(s.DirPath(archiveDir), name)
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}

	return path.Join(ArchiveDirName, name), nil
}

// HasArchive reports whether dir already contains an archive subdirectory
func (s *Store) HasArchive(dir string) bool {
	info, err := os.Stat(s.FilePath(dir, ArchiveDirName))
	return err == nil && info.IsDir()
}
