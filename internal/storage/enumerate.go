package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PageSize is the number of document entries per listing page
const PageSize = 30

// Entry kinds: images get inline previews, everything else is a
// generic downloadable document
const (
	KindImage = "image"
	KindLink  = "link"
)

// Reserved subdirectory names, never listed as documents
var reservedNames = map[string]bool{
	"archive":   true,
	"templates": true,
}

var imageExtensions = map[string]bool{
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".png":  true,
}

// Entry is one visible file in an agent directory
type Entry struct {
	Name string
	Kind string
}

// Page is one page of a directory listing. NextPage and PrevPage are
// 1-indexed page numbers, 0 when there is no such page.
type Page struct {
	Entries  []Entry
	Page     int
	NextPage int
	PrevPage int
}

// Store provides access to the uploads directory tree. All directory
// arguments are slash-separated paths relative to Root.
type Store struct {
	Root string
}

// NewStore creates a Store rooted at the uploads directory
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// DirPath returns the absolute path of a relative directory
func (s *Store) DirPath(dir string) string {
	return filepath.Join(s.Root, filepath.FromSlash(dir))
}

// FilePath returns the absolute path of a file inside a relative directory
func (s *Store) FilePath(dir, name string) string {
	return filepath.Join(s.DirPath(dir), name)
}

// EnsureDir creates a directory (and parents) if it does not exist yet
func (s *Store) EnsureDir(dir string) error {
	return os.MkdirAll(s.DirPath(dir), 0o755)
}

// IsReserved reports whether name is one of the reserved subdirectory names
func IsReserved(name string) bool {
	return reservedNames[name]
}

// Classify returns the entry kind for a filename based on its extension
func Classify(name string) string {
	if imageExtensions[strings.ToLower(filepath.Ext(name))] {
		return KindImage
	}
	return KindLink
}

// ListAll returns every visible document in dir, most recent listing order
// first. Reserved subdirectories and dot-files are excluded. A directory
// that does not exist yet is valid and is created empty.
func (s *Store) ListAll(dir string) ([]Entry, error) {
	if err := s.EnsureDir(dir); err != nil {
		return nil, err
	}
	raw, err := os.ReadDir(s.DirPath(dir))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		name := e.Name()
		if IsReserved(name) || strings.HasPrefix(name, ".") {
			continue
		}
		entries = append(entries, Entry{Name: name, Kind: Classify(name)})
	}

	// Listing order is the recency proxy: newest entries come last from
	// ReadDir's name sort in practice, so reverse for display.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

// ListDocuments returns one page of the directory listing. Page numbers
// are 1-indexed; values below 1 are treated as page 1 and out-of-range
// pages yield an empty result, never an error.
func (s *Store) ListDocuments(dir string, page int) (*Page, error) {
	entries, err := s.ListAll(dir)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}

	start := (page - 1) * PageSize
	if start >= len(entries) {
		return &Page{Entries: []Entry{}, Page: page}, nil
	}

	end := start + PageSize
	next := 0
	if end < len(entries) {
		next = page + 1
	} else {
		end = len(entries)
	}

	prev := 0
	if page > 1 {
		prev = page - 1
	}

	return &Page{
		Entries:  entries[start:end],
		Page:     page,
		NextPage: next,
		PrevPage: prev,
	}, nil
}

// CountDocuments returns the visible-file count for dir. Unlike listing,
// counting does not create a missing directory: a directory that has never
// been written to simply counts as zero.
func (s *Store) CountDocuments(dir string) (int, error) {
	raw, err := os.ReadDir(s.DirPath(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for _, e := range raw {
		name := e.Name()
		if IsReserved(name) || strings.HasPrefix(name, ".") {
			continue
		}
		count++
	}

	return count, nil
}

// Exists reports whether a file is present in dir
func (s *Store) Exists(dir, name string) bool {
	info, err := os.Stat(s.FilePath(dir, name))
	return err == nil && !info.IsDir()
}

// Remove unlinks a file from dir
func (s *Store) Remove(dir, name string) error {
	return os.Remove(s.FilePath(dir, name))
}
