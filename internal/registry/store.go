package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
)

// Store persists the registry artifact. Implementations must guarantee
// that observers see either the pre- or post-mutation state, never an
// intermediate one.
type Store interface {
	// Load reads the current registry. Returns ErrRegistryNotFound if no
	// artifact exists yet.
	Load() (*Registry, error)

	// Save validates and persists the registry atomically.
	Save(*Registry) error

	// Lock acquires the mutation lock for a load-mutate-persist window.
	// Returns ErrRegistryLocked if another mutation holds it.
	Lock() (Unlocker, error)
}

// Unlocker releases a held mutation lock.
type Unlocker interface {
	Unlock() error
}

// ArtifactName is the registry file name under the .keywarden directory.
const ArtifactName = "registry.toml"

// FileStore stores the registry under <Dir>/.keywarden/registry.toml.
type FileStore struct {
	Dir string // project root
}

// Path returns the location of the persisted artifact.
func (s *FileStore) Path() string {
	return filepath.Join(s.Dir, ".keywarden", ArtifactName)
}

func (s *FileStore) Load() (*Registry, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrRegistryNotFound, s.Path())
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	reg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Save writes the registry to a staging file and atomically renames it
// over the artifact. Partial writes are never observable.
func (s *FileStore) Save(reg *Registry) error {
	if err := reg.Validate(); err != nil {
		return err
	}

	path := s.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating .keywarden directory: %w", err)
	}

	staging := path + ".tmp"
	if err := os.WriteFile(staging, Encode(reg), 0600); err != nil {
		return fmt.Errorf("writing staged registry: %w", err)
	}
	if err := os.Rename(staging, path); err != nil {
		// Leave no stale staging file behind.
		_ = os.Remove(staging)
		return fmt.Errorf("swapping registry artifact: %w", err)
	}
	return nil
}

func (s *FileStore) Lock() (Unlocker, error) {
	return acquireFileLock(filepath.Join(s.Dir, ".keywarden", "registry.lock"))
}

// MemoryStore holds the registry in memory. Used by tests and by callers
// that want to run the engine without touching a filesystem.
type MemoryStore struct {
	mu     sync.Mutex
	locked bool
	reg    *Registry
}

// NewMemoryStore returns a store pre-populated with reg (may be nil).
func NewMemoryStore(reg *Registry) *MemoryStore {
	s := &MemoryStore{}
	if reg != nil {
		s.reg = reg.Clone()
	}
	return s
}

func (s *MemoryStore) Load() (*Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg == nil {
		return nil, kerrors.ErrRegistryNotFound
	}
	return s.reg.Clone(), nil
}

func (s *MemoryStore) Save(reg *Registry) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg = reg.Clone()
	return nil
}

func (s *MemoryStore) Lock() (Unlocker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return nil, kerrors.ErrRegistryLocked
	}
	s.locked = true
	return memoryUnlock{s}, nil
}

type memoryUnlock struct{ s *MemoryStore }

func (u memoryUnlock) Unlock() error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	u.s.locked = false
	return nil
}
