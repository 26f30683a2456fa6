package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/halcyonlabs/keywarden/internal/docs"
	"github.com/halcyonlabs/keywarden/internal/gateway"
	logger "github.com/halcyonlabs/keywarden/internal/logging"
	"github.com/halcyonlabs/keywarden/internal/registry"
)

// DefaultWorkers bounds the rewrap worker pool. Documents share no
// mutable state, so parallelism is a throughput knob, not a correctness
// concern.
const DefaultWorkers = 4

// DefaultTimeout caps a single document rewrap so one unreachable
// encryption backend cannot stall the whole batch.
const DefaultTimeout = 30 * time.Second

// Options configures a reconciliation run.
type Options struct {
	// Workers is the worker pool size. Defaults to DefaultWorkers.
	Workers int

	// Timeout is the per-document rewrap deadline. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger receives progress output.
	Logger logger.Logger
}

// Failure records one document that could not be reconciled.
type Failure struct {
	Path   string
	Reason string
}

// Report aggregates the outcome of a reconciliation run. Reconciliation
// is best-effort: a failed document never aborts the rest, so the report
// is the only complete account of what happened.
type Report struct {
	// Attempted is the number of governed documents processed.
	Attempted int

	// Reconciled is the number of documents whose envelopes now match policy.
	Reconciled int

	// Failures lists unreconciled documents in path order.
	Failures []Failure

	// Warnings lists policy anomalies, such as documents with zero
	// expected recipients (reconciled, but undecryptable by anyone until
	// the policy is corrected).
	Warnings []string
}

// Ok reports whether every attempted document reconciled.
func (r *Report) Ok() bool {
	return len(r.Failures) == 0
}

// Reconcile walks every governed document and converges its envelope to
// the recipient set the registry derives for its path. Each document is
// independent and idempotent to re-process, so failures are recorded and
// the run continues.
func Reconcile(ctx context.Context, reg *registry.Registry, store docs.Store, gw gateway.Gateway, opts Options) (*Report, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	paths, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	var governed []string
	for _, path := range paths {
		if reg.Governed(path) {
			governed = append(governed, path)
		}
	}

	report := &Report{Attempted: len(governed)}
	if len(governed) == 0 {
		return report, nil
	}

	jobs := make(chan string)
	results := make(chan outcome, len(governed))

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- reconcileOne(ctx, reg, gw, path, opts)
			}
		}()
	}

	for _, path := range governed {
		jobs <- path
	}
	close(jobs)
	wg.Wait()
	close(results)

	for res := range results {
		if res.warning != "" {
			report.Warnings = append(report.Warnings, res.warning)
		}
		if res.failure != nil {
			report.Failures = append(report.Failures, *res.failure)
		} else {
			report.Reconciled++
		}
	}

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Path < report.Failures[j].Path })
	sort.Strings(report.Warnings)
	return report, nil
}

// outcome is the result of reconciling a single document.
type outcome struct {
	warning string
	failure *Failure
}

func reconcileOne(ctx context.Context, reg *registry.Registry, gw gateway.Gateway, path string, opts Options) (res outcome) {
	expected := reg.ResolveRecipients(path)
	if len(expected) == 0 {
		res.warning = fmt.Sprintf("%s: no expected recipients; document will be undecryptable until policy is corrected", path)
	}

	recipients := make([]gateway.Recipient, 0, len(expected))
	for _, p := range expected {
		pub, err := p.Key()
		if err != nil {
			res.failure = &Failure{Path: path, Reason: fmt.Sprintf("recipient %s: %v", p.Name, err)}
			return res
		}
		recipients = append(recipients, gateway.Recipient{Name: p.Name, Key: pub})
	}

	docCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- gw.Rewrap(docCtx, path, recipients)
	}()

	select {
	case err := <-done:
		if err != nil {
			opts.Logger.Debugf("rewrap failed for %s: %v", path, err)
			res.failure = &Failure{Path: path, Reason: reason(err)}
		} else {
			opts.Logger.Debugf("reconciled %s with %d recipient(s)", path, len(recipients))
		}
	case <-docCtx.Done():
		res.failure = &Failure{Path: path, Reason: string(gateway.KindTimeout)}
	}
	return res
}

func reason(err error) string {
	if kind := gateway.KindOf(err); kind != "" {
		return string(kind)
	}
	return err.Error()
}
