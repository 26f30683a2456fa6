package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/halcyonlabs/keywarden/internal/audit"
	"github.com/halcyonlabs/keywarden/internal/keys"
	"github.com/halcyonlabs/keywarden/internal/reconcile"
	"github.com/halcyonlabs/keywarden/internal/rotate"
)

// OffboardOptions configures the offboard workflow.
type OffboardOptions struct {
	// Name is the principal to remove.
	Name string

	// RotateAffected additionally rotates the secret values of every
	// document the departing principal could read. Re-encryption alone
	// revokes future reads; rotation invalidates values already seen.
	RotateAffected bool

	// DryRun previews the policy change without writing anything.
	DryRun bool

	// Workers and Timeout tune the reconciliation pass.
	Workers int
	Timeout time.Duration
}

// OffboardResult contains the outcome of an offboard operation.
type OffboardResult struct {
	// Name is the removed principal's name.
	Name string

	// Group is the group the principal belonged to.
	Group string

	// Fingerprint is the short fingerprint of the removed key.
	Fingerprint string

	// AffectedDocs lists documents the principal could read before removal.
	AffectedDocs []string

	// Report is the reconciliation outcome. Nil on dry-run.
	Report *reconcile.Report

	// Rotated lists documents whose secret values were rotated.
	Rotated []string

	// RotationFailures lists documents that could not be rotated, keyed
	// by path. Rotation is best-effort on top of a completed revocation.
	RotationFailures map[string]string

	// DryRun indicates no changes were made.
	DryRun bool
}

// Offboard removes a principal and re-encrypts every document the
// principal could previously read under a fresh content key, so the old
// key material becomes useless. With RotateAffected the secret values
// themselves are also replaced.
//
// Returns ErrPrincipalNotFound if the name is not registered.
func Offboard(ctx context.Context, env *Environment, opts OffboardOptions) (*OffboardResult, error) {
	unlock, err := env.Registry.Lock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock.Unlock() }()

	reg, err := env.Registry.Load()
	if err != nil {
		return nil, err
	}

	next := reg.Clone()
	removed, err := next.Remove(opts.Name)
	if err != nil {
		return nil, err
	}

	// Affected set is computed against the pre-removal registry: every
	// governed document whose expected recipients included the principal.
	governed, err := governedDocs(env.Documents, reg)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	var affected []string
	for _, path := range governed {
		for _, p := range reg.ResolveRecipients(path) {
			if p.Name == opts.Name {
				affected = append(affected, path)
				break
			}
		}
	}

	result := &OffboardResult{
		Name:         opts.Name,
		Group:        string(removed.Group),
		Fingerprint:  keys.FingerprintPrefix(removed.Fingerprint()),
		AffectedDocs: affected,
		DryRun:       opts.DryRun,
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

	if opts.RotateAffected {
		result.RotationFailures = make(map[string]string)
		gw := env.Gateway()
		for _, path := range affected {
			_, rotErr := rotate.Rotate(ctx, path, next, env.Documents, gw, rotate.Options{Key: env.Operator})
			if rotErr != nil {
				env.Logger.Warnf("rotating %s: %v", path, rotErr)
				result.RotationFailures[path] = rotErr.Error()
				continue
			}
			result.Rotated = append(result.Rotated, path)
		}
	}

	recordChange(ctx, env, report, fmt.Sprintf("keywarden: offboard %s", opts.Name))

	env.recordAudit(audit.Entry{
		Operation:      "offboard",
		Principal:      opts.Name,
		Group:          string(removed.Group),
		KeyFingerprint: result.Fingerprint,
		Outcome:        outcomeOf(report),
		DocsAttempted:  report.Attempted,
		DocsFailed:     len(report.Failures),
		RotatedCount:   len(result.Rotated),
	})

	return result, nil
}
