package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/halcyonlabs/keywarden/internal/configs"
	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/keys"
	logger "github.com/halcyonlabs/keywarden/internal/logging"
	"github.com/halcyonlabs/keywarden/internal/registry"
)

// InitResult contains the outcome of project initialization.
type InitResult struct {
	// ProjectPath is the initialized project root.
	ProjectPath string

	// RegistryPath is the created registry artifact.
	RegistryPath string

	// OperatorKeyPath is where the operator private key was saved.
	OperatorKeyPath string
}

// Init creates the .keywarden directory in the current working directory,
// writes a default registry with the canonical group rules and no
// principals, and generates an operator keypair.
//
// Returns ErrProjectAlreadyInitialized if a project already exists here
// or in a parent directory.
func Init(ctx context.Context, log logger.Logger) (*InitResult, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	if existing, err := configs.Resolve(cwd); err == nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrProjectAlreadyInitialized, existing.ProjectPath)
	}

	markerDir := filepath.Join(cwd, ".keywarden")
	if err := os.MkdirAll(markerDir, 0700); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	// The advisory lock is transient and must not be committed.
	gitignore := filepath.Join(markerDir, ".gitignore")
	if err := os.WriteFile(gitignore, []byte("registry.lock\n"), 0644); err != nil {
		return nil, fmt.Errorf("writing gitignore: %w", err)
	}

	store := &registry.FileStore{Dir: cwd}
	if err := store.Save(registry.Default()); err != nil {
		return nil, fmt.Errorf("writing registry: %w", err)
	}

	settings, err := configs.Resolve(cwd)
	if err != nil {
		return nil, err
	}

	// The initializing operator gets a keypair so they can immediately
	// seal and reconcile documents.
	operatorKeyPath := settings.OperatorKeyPath()
	priv, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating operator keypair: %w", err)
	}
	if err := keys.SavePrivate(priv, operatorKeyPath); err != nil {
		return nil, fmt.Errorf("saving operator key: %w", err)
	}
	log.Debugf("operator key saved to %s", operatorKeyPath)

	return &InitResult{
		ProjectPath:     cwd,
		RegistryPath:    settings.RegistryPath,
		OperatorKeyPath: operatorKeyPath,
	}, nil
}
