package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
)

// fileLock is an advisory lock file created with O_EXCL. Two concurrent
// mutations racing on the staged-then-swapped artifact could silently
// lose one mutation, so every load-mutate-persist window must hold it.
type fileLock struct {
	path string
}

func acquireFileLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: remove %s if the holder crashed", kerrors.ErrRegistryLocked, path)
		}
		return nil, fmt.Errorf("acquiring registry lock: %w", err)
	}

	// Record the holder's pid for operators debugging a stale lock.
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("acquiring registry lock: %w", err)
	}

	return &fileLock{path: path}, nil
}

func (l *fileLock) Unlock() error {
	return os.Remove(l.path)
}
