package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/halcyonlabs/keywarden/internal/audit"
	"github.com/halcyonlabs/keywarden/internal/docs"
	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/keys"
	"github.com/halcyonlabs/keywarden/internal/reconcile"
	"github.com/halcyonlabs/keywarden/internal/registry"
)

// OnboardOptions configures the onboard workflow.
type OnboardOptions struct {
	// Name is the principal name to register.
	Name string

	// Group is the principal's single group membership.
	Group registry.Group

	// PublicKeyText is the principal's public key (OpenSSH or PEM).
	// Ignored when GenerateKey is set.
	PublicKeyText string

	// GenerateKey creates a fresh RSA keypair for the principal instead
	// of requiring an existing public key.
	GenerateKey bool

	// DryRun previews the policy change without writing anything.
	DryRun bool

	// Workers and Timeout tune the reconciliation pass.
	Workers int
	Timeout time.Duration
}

// OnboardResult contains the outcome of an onboard operation.
type OnboardResult struct {
	// Name is the registered principal's name.
	Name string

	// Group is the group the principal was placed in.
	Group registry.Group

	// Fingerprint is the short fingerprint of the registered key.
	Fingerprint string

	// Scope lists the document patterns the principal now falls under.
	Scope []string

	// PrivateKeyPath is where the generated private key was saved.
	// Empty unless GenerateKey was set.
	PrivateKeyPath string

	// Report is the reconciliation outcome. Nil on dry-run.
	Report *reconcile.Report

	// DryRun indicates no changes were made.
	DryRun bool
}

// Onboard registers a new principal and reconciles every governed document
// the principal's group grants access to. The registry write is
// transactional; the document pass that follows is best-effort and its
// failures are reported, not fatal.
//
// Returns ErrDuplicatePrincipal if the name is already registered.
// Returns ErrInvalidKeyFormat if the supplied public key does not parse.
func Onboard(ctx context.Context, env *Environment, opts OnboardOptions) (*OnboardResult, error) {
	unlock, err := env.Registry.Lock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock.Unlock() }()

	reg, err := env.Registry.Load()
	if err != nil {
		return nil, err
	}

	keyText := strings.TrimSpace(opts.PublicKeyText)
	privateKeyPath := ""
	if opts.GenerateKey {
		if opts.DryRun {
			keyText = ""
		} else {
			priv, genErr := keys.Generate()
			if genErr != nil {
				return nil, fmt.Errorf("generating keypair: %w", genErr)
			}
			privateKeyPath = env.Settings.PrivateKeyPath(opts.Name)
			if saveErr := keys.SavePrivate(priv, privateKeyPath); saveErr != nil {
				return nil, fmt.Errorf("saving private key: %w", saveErr)
			}
			keyText, err = keys.EncodePublic(&priv.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("encoding public key: %w", err)
			}
		}
	}

	next := reg.Clone()
	principal := registry.Principal{Name: opts.Name, Group: opts.Group, PublicKey: keyText}

	if opts.DryRun && opts.GenerateKey {
		// Validate everything except the key, which does not exist yet.
		if !opts.Group.Valid() {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrInvalidGroup, opts.Group)
		}
		if _, exists := next.Principal(opts.Name); exists {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrDuplicatePrincipal, opts.Name)
		}
	} else if err := next.Add(principal); err != nil {
		return nil, err
	}

	result := &OnboardResult{
		Name:           opts.Name,
		Group:          opts.Group,
		Scope:          opts.Group.Scope(),
		PrivateKeyPath: privateKeyPath,
		DryRun:         opts.DryRun,
	}
	if added, ok := next.Principal(opts.Name); ok {
		result.Fingerprint = keys.FingerprintPrefix(added.Fingerprint())
	}

	if opts.DryRun {
		return result, nil
	}

	if err := env.Registry.Save(next); err != nil {
		return nil, err
	}

	report, err := reconcile.Reconcile(ctx, next, env.Documents, env.Gateway(), reconcile.Options{
		Workers: opts.Workers,
		Timeout: opts.Timeout,
		Logger:  env.Logger,
	})
	if err != nil {
		return nil, err
	}
	result.Report = report

	recordChange(ctx, env, report, fmt.Sprintf("keywarden: onboard %s (%s)", opts.Name, opts.Group))

	env.recordAudit(audit.Entry{
		Operation:      "onboard",
		Principal:      opts.Name,
		Group:          string(opts.Group),
		KeyFingerprint: result.Fingerprint,
		Outcome:        outcomeOf(report),
		DocsAttempted:  report.Attempted,
		DocsFailed:     len(report.Failures),
	})

	return result, nil
}

// recordChange commits the registry artifact and every reconciled document.
// Version control failures are warnings; the policy change already stands.
func recordChange(ctx context.Context, env *Environment, report *reconcile.Report, message string) {
	paths := []string{".keywarden/" + registry.ArtifactName}
	if report != nil && report.Reconciled > 0 {
		paths = append(paths, "docs")
	}
	if err := env.Sink.RecordChange(ctx, paths, message); err != nil {
		env.Logger.Warnf("recording change: %v", err)
	}
}

func outcomeOf(report *reconcile.Report) string {
	switch {
	case report == nil || report.Ok():
		return "ok"
	case report.Reconciled > 0:
		return "partial"
	default:
		return "failed"
	}
}

// governedDocs filters store paths down to those the registry governs.
func governedDocs(store docs.Store, reg *registry.Registry) ([]string, error) {
	paths, err := store.List()
	if err != nil {
		return nil, err
	}
	var governed []string
	for _, p := range paths {
		if reg.Governed(p) {
			governed = append(governed, p)
		}
	}
	return governed, nil
}
