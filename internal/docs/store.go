package docs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
)

// Suffix marks an encrypted governed document on disk.
const Suffix = ".sealed"

// Store abstracts the governed document tree. Paths are slash-separated
// and relative to the project root (e.g. "docs/dev/database.sealed").
type Store interface {
	List() ([]string, error)
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
}

// Category returns the governed top-level category of a document path
// ("dev", "staging", "production", "examples"), or an empty string for
// paths outside the docs tree.
func Category(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] != "docs" {
		return ""
	}
	return parts[1]
}

// FileStore reads documents from the filesystem under Root.
type FileStore struct {
	Root string
}

func (s *FileStore) List() ([]string, error) {
	var out []string
	root := filepath.Join(s.Root, "docs")

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Suffix) {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking document tree: %w", err)
	}

	sort.Strings(out)
	return out, nil
}

func (s *FileStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrDocumentNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Write(path string, data []byte) error {
	full := filepath.Join(s.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0600)
}

// MemStore is an in-memory document store for tests.
type MemStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string][]byte)}
}

func (s *MemStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for path := range s.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemStore) Read(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrDocumentNotFound, path)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemStore) Write(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), data...)
	return nil
}
