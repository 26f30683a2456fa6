package workflows

import (
	"context"
	"time"

	"github.com/halcyonlabs/keywarden/internal/audit"
)

// LogOptions configures an audit log query.
type LogOptions struct {
	// Limit caps the number of entries returned. Zero means all.
	Limit int

	// Reverse returns newest entries first.
	Reverse bool

	// Operation filters by operation name (onboard, offboard, rotate,
	// reconcile). Empty means all operations.
	Operation string

	// Since and Until bound entries by timestamp. Zero values disable
	// the respective bound.
	Since time.Time
	Until time.Time
}

// QueryLog reads the audit log and returns entries matching the query.
// The log is append-only and entries are stored oldest first.
func QueryLog(ctx context.Context, env *Environment, opts LogOptions) ([]audit.Entry, error) {
	entries, err := env.Audit.Read()
	if err != nil {
		return nil, err
	}

	var matched []audit.Entry
	for _, e := range entries {
		if opts.Operation != "" && e.Operation != opts.Operation {
			continue
		}
		if !opts.Since.IsZero() || !opts.Until.IsZero() {
			ts, parseErr := time.Parse(time.RFC3339Nano, e.Timestamp)
			if parseErr != nil {
				continue
			}
			if !opts.Since.IsZero() && ts.Before(opts.Since) {
				continue
			}
			if !opts.Until.IsZero() && ts.After(opts.Until) {
				continue
			}
		}
		matched = append(matched, e)
	}

	if opts.Reverse {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}
