package configs

import (
	"fmt"
	"os"
	"path/filepath"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/utils"
)

// Settings locates everything an operation needs on disk. It is resolved
// once per command and passed explicitly; nothing in the engine reads
// ambient globals or environment-selected paths.
type Settings struct {
	// ProjectPath is the project root (the directory holding .keywarden).
	ProjectPath string

	// RegistryPath is the persisted registry artifact.
	RegistryPath string

	// AuditPath is the append-only audit log.
	AuditPath string

	// UserKeysPath is where generated private keys are stored, outside
	// the project tree.
	UserKeysPath string
}

// Resolve walks up from start to find the project root and fills in all
// derived paths. Returns ErrProjectNotInitialized if no .keywarden
// directory exists above start.
func Resolve(start string) (*Settings, error) {
	root, err := utils.FindProjectRoot(start)
	if err != nil {
		return nil, fmt.Errorf("locating project root: %w", err)
	}
	if root == "" {
		return nil, kerrors.ErrProjectNotInitialized
	}

	keysPath, err := DefaultUserKeysPath()
	if err != nil {
		return nil, err
	}

	return &Settings{
		ProjectPath:  root,
		RegistryPath: filepath.Join(root, ".keywarden", "registry.toml"),
		AuditPath:    filepath.Join(root, ".keywarden", "audit.jsonl"),
		UserKeysPath: keysPath,
	}, nil
}

// DefaultUserKeysPath returns the per-user directory for private keys.
func DefaultUserKeysPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(configDir, "keywarden", "keys"), nil
}

// PrivateKeyPath returns where a generated private key for the given
// principal in this project is stored.
func (s *Settings) PrivateKeyPath(principal string) string {
	project := filepath.Base(s.ProjectPath)
	return filepath.Join(s.UserKeysPath, project+"-"+principal+".pem")
}

// OperatorKeyPath returns the default operator private key location for
// this project.
func (s *Settings) OperatorKeyPath() string {
	project := filepath.Base(s.ProjectPath)
	return filepath.Join(s.UserKeysPath, project+".pem")
}
