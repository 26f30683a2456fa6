package workflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/halcyonlabs/keywarden/internal/audit"
	"github.com/halcyonlabs/keywarden/internal/docs"
	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/rotate"
)

// RotateOptions configures the rotate workflow.
type RotateOptions struct {
	// Paths selects the documents to rotate. Entries may be exact
	// document paths or doublestar patterns. Empty means every governed
	// document.
	Paths []string

	// Selectors restricts rotation to fields whose names contain one of
	// these substrings.
	Selectors []string
}

// RotateResult contains the outcome of a rotate operation.
type RotateResult struct {
	// Records describe each successfully rotated document.
	Records []*rotate.Record

	// Failures maps document paths to the reason rotation failed there.
	// A failed document never aborts the rest of the run.
	Failures map[string]string
}

// FieldsChanged sums replaced fields across all rotated documents.
func (r *RotateResult) FieldsChanged() int {
	total := 0
	for _, rec := range r.Records {
		total += rec.FieldsChanged
	}
	return total
}

// RotateDocs replaces the secret values in the selected documents and
// re-encrypts each for the registry's current expected recipient set.
//
// Returns ErrNoDocumentsFound if no governed document matches Paths.
func RotateDocs(ctx context.Context, env *Environment, opts RotateOptions) (*RotateResult, error) {
	reg, err := env.Registry.Load()
	if err != nil {
		return nil, err
	}

	governed, err := governedDocs(env.Documents, reg)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	selected := selectPaths(governed, opts.Paths)
	if len(selected) == 0 {
		return nil, kerrors.ErrNoDocumentsFound
	}

	result := &RotateResult{Failures: make(map[string]string)}
	gw := env.Gateway()
	for _, path := range selected {
		record, rotErr := rotate.Rotate(ctx, path, reg, env.Documents, gw, rotate.Options{
			Selectors: opts.Selectors,
			Key:       env.Operator,
		})
		if rotErr != nil {
			env.Logger.Warnf("rotating %s: %v", path, rotErr)
			result.Failures[path] = rotErr.Error()
			continue
		}
		if record.ManualUpdateRequired {
			env.Logger.Infof("%s carries no recognizable secret fields; values must be rotated manually", path)
		}
		result.Records = append(result.Records, record)

		env.recordAudit(audit.Entry{
			Operation:      "rotate",
			Path:           record.Path,
			Classification: string(record.Classification),
			FieldsChanged:  record.FieldsChanged,
			Outcome:        "ok",
		})
	}

	if len(result.Records) > 0 {
		msg := fmt.Sprintf("keywarden: rotate %d document(s)", len(result.Records))
		if err := env.Sink.RecordChange(ctx, []string{"docs"}, msg); err != nil {
			env.Logger.Warnf("recording change: %v", err)
		}
	}

	return result, nil
}

// selectPaths filters governed documents by the requested paths and
// patterns. A bare name also matches its sealed form.
func selectPaths(governed, requested []string) []string {
	if len(requested) == 0 {
		return governed
	}
	var selected []string
	for _, path := range governed {
		for _, want := range requested {
			if matchesRequest(path, want) {
				selected = append(selected, path)
				break
			}
		}
	}
	return selected
}

func matchesRequest(path, want string) bool {
	if path == want || path == want+docs.Suffix {
		return true
	}
	if ok, err := doublestar.Match(want, path); err == nil && ok {
		return true
	}
	trimmed := strings.TrimSuffix(path, docs.Suffix)
	ok, err := doublestar.Match(want, trimmed)
	return err == nil && ok
}
