package workflows

import (
	"context"
	"time"

	"github.com/halcyonlabs/keywarden/internal/audit"
	"github.com/halcyonlabs/keywarden/internal/reconcile"
)

// ReconcileOptions configures a standalone reconciliation pass.
type ReconcileOptions struct {
	// Workers and Timeout tune the worker pool.
	Workers int
	Timeout time.Duration
}

// ReconcileAll converges every governed document's envelope to the
// recipient set the current registry derives for its path. Safe to run
// repeatedly; documents already matching policy are simply rewrapped.
func ReconcileAll(ctx context.Context, env *Environment, opts ReconcileOptions) (*reconcile.Report, error) {
	reg, err := env.Registry.Load()
	if err != nil {
		return nil, err
	}

	report, err := reconcile.Reconcile(ctx, reg, env.Documents, env.Gateway(), reconcile.Options{
		Workers: opts.Workers,
		Timeout: opts.Timeout,
		Logger:  env.Logger,
	})
	if err != nil {
		return nil, err
	}

	recordChange(ctx, env, report, "keywarden: reconcile documents")

	env.recordAudit(audit.Entry{
		Operation:     "reconcile",
		Outcome:       outcomeOf(report),
		DocsAttempted: report.Attempted,
		DocsFailed:    len(report.Failures),
	})

	return report, nil
}
