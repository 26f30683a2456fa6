package workflows

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/halcyonlabs/keywarden/internal/audit"
	"github.com/halcyonlabs/keywarden/internal/configs"
	"github.com/halcyonlabs/keywarden/internal/docs"
	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/gateway"
	"github.com/halcyonlabs/keywarden/internal/keys"
	logger "github.com/halcyonlabs/keywarden/internal/logging"
	"github.com/halcyonlabs/keywarden/internal/registry"
	"github.com/halcyonlabs/keywarden/internal/utils"
	"github.com/halcyonlabs/keywarden/internal/vcs"
)

// Environment bundles the stores and sinks a workflow operates on. Commands
// build one with NewEnvironment; tests build one by hand around in-memory
// stores.
type Environment struct {
	// Settings carries all resolved paths for the project.
	Settings *configs.Settings

	// Registry persists the policy artifact.
	Registry registry.Store

	// Documents is the governed document tree.
	Documents docs.Store

	// Operator is the caller's private key, used to open existing
	// envelopes during rewrap and rotation.
	Operator *rsa.PrivateKey

	// Audit receives one entry per completed policy change.
	Audit *audit.Log

	// Sink records changed artifacts in version control.
	Sink vcs.Sink

	// Logger receives progress output.
	Logger logger.Logger
}

// NewEnvironment resolves the project from the working directory and wires
// file-backed stores. The operator private key is read from keyData when
// provided (stdin), otherwise from the default per-user key location.
func NewEnvironment(keyData []byte, log logger.Logger) (*Environment, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := configs.Resolve(cwd)
	if err != nil {
		return nil, err
	}

	operator, err := loadOperatorKey(keyData, settings)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Settings:  settings,
		Registry:  &registry.FileStore{Dir: settings.ProjectPath},
		Documents: &docs.FileStore{Root: settings.ProjectPath},
		Operator:  operator,
		Audit:     audit.At(settings.ProjectPath),
		Sink:      vcs.Nop{},
		Logger:    log,
	}
	env.Sink = pickSink(settings.ProjectPath)
	return env, nil
}

// NewReadOnlyEnvironment is like NewEnvironment but skips loading the
// operator private key. Suitable for workflows that only read the
// registry or the audit log.
func NewReadOnlyEnvironment(log logger.Logger) (*Environment, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := configs.Resolve(cwd)
	if err != nil {
		return nil, err
	}

	return &Environment{
		Settings:  settings,
		Registry:  &registry.FileStore{Dir: settings.ProjectPath},
		Documents: &docs.FileStore{Root: settings.ProjectPath},
		Audit:     audit.At(settings.ProjectPath),
		Sink:      vcs.Nop{},
		Logger:    log,
	}, nil
}

// Gateway returns the envelope gateway bound to this environment's
// document store and operator key.
func (e *Environment) Gateway() gateway.Gateway {
	return &gateway.Envelope{Docs: e.Documents, Operator: e.Operator}
}

// loadOperatorKey parses the operator's private key from explicit bytes,
// falling back to the default on-disk location for this project.
// Passphrase-protected OpenSSH keys prompt on the terminal.
func loadOperatorKey(keyData []byte, settings *configs.Settings) (*rsa.PrivateKey, error) {
	fromStdin := len(keyData) > 0
	if !fromStdin {
		path := settings.OperatorKeyPath()
		if !utils.FileExists(path) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrPrivateKeyNotFound, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		keyData = data
	}

	priv, err := keys.ParsePrivate(keyData)
	if err == nil {
		return priv, nil
	}
	if !keys.IsPassphraseMissing(err) {
		if fromStdin {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPrivateKey, err)
		}
		return nil, err
	}

	// When the key came in on stdin, the terminal is still free on /dev/tty.
	var passphrase []byte
	if fromStdin {
		passphrase, err = utils.ReadPassphraseFromTTY("Enter passphrase for private key: ")
	} else {
		passphrase, err = utils.ReadPassphrase("Enter passphrase for private key: ")
	}
	if err != nil {
		return nil, err
	}
	return keys.ParsePrivateWithPassphrase(keyData, passphrase)
}

// pickSink returns a git sink when the project is a git work tree and a
// no-op sink otherwise.
func pickSink(projectPath string) vcs.Sink {
	if info, err := os.Stat(projectPath + "/.git"); err == nil && info.IsDir() {
		return &vcs.GitSink{Dir: projectPath}
	}
	return vcs.Nop{}
}

// asRecipients converts registry principals into gateway recipients,
// parsing each public key once.
func asRecipients(principals []registry.Principal) ([]gateway.Recipient, error) {
	recipients := make([]gateway.Recipient, 0, len(principals))
	for _, p := range principals {
		pub, err := p.Key()
		if err != nil {
			return nil, fmt.Errorf("parsing key for %s: %w", p.Name, err)
		}
		recipients = append(recipients, gateway.Recipient{Name: p.Name, Key: pub})
	}
	return recipients, nil
}

// recordAudit appends an audit entry, downgrading failures to a warning.
// An unwritable audit log never blocks a completed policy change.
func (e *Environment) recordAudit(entry audit.Entry) {
	if e.Audit == nil {
		return
	}
	if err := e.Audit.Append(entry); err != nil {
		e.Logger.Warnf("audit entry not recorded: %v", err)
	}
}
