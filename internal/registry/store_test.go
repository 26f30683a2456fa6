package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
)

func TestFileStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	store := &FileStore{Dir: dir}

	reg := populatedRegistry(t)
	require.NoError(t, store.Save(reg))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, reg.Principals, loaded.Principals)

	// No staging file may survive a successful save.
	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := &FileStore{Dir: t.TempDir()}
	_, err := store.Load()
	assert.ErrorIs(t, err, kerrors.ErrRegistryNotFound)
}

func TestFileStoreSaveRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	store := &FileStore{Dir: dir}

	reg := Default()
	reg.Rules[0].Principals = []string{"ghost"}
	require.Error(t, store.Save(reg))

	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "invalid registry must never reach disk")
}

func TestFileStoreLockExcludes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".keywarden"), 0700))
	store := &FileStore{Dir: dir}

	unlock, err := store.Lock()
	require.NoError(t, err)

	_, err = store.Lock()
	assert.ErrorIs(t, err, kerrors.ErrRegistryLocked)

	require.NoError(t, unlock.Unlock())
	unlock2, err := store.Lock()
	require.NoError(t, err)
	require.NoError(t, unlock2.Unlock())
}

func TestMemoryStoreIsolation(t *testing.T) {
	reg := populatedRegistry(t)
	store := NewMemoryStore(reg)

	loaded, err := store.Load()
	require.NoError(t, err)
	_, err = loaded.Remove("alice")
	require.NoError(t, err)

	again, err := store.Load()
	require.NoError(t, err)
	_, ok := again.Principal("alice")
	assert.True(t, ok, "mutating a loaded copy must not affect the store")
}
