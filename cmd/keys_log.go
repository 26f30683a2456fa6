package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyonlabs/keywarden/internal/audit"
	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var (
	logLimit     int
	logReverse   bool
	logOperation string
	logSince     string
	logUntil     string
	logOneline   bool
	logJSON      bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	logCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation (onboard, offboard, rotate, reconcile)")
	logCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "compact one-line format")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

// resetLogCommandState resets the log command's flag state for testing.
func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logOperation = ""
	logSince = ""
	logUntil = ""
	logOneline = false
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long: `Displays the append-only audit log of access control operations:
who was onboarded or offboarded, what was rotated, and how each
reconciliation went.

Examples:
  keywarden keys log                      # View full log
  keywarden keys log -n 10 --reverse      # Last 10 entries, newest first
  keywarden keys log --operation rotate   # Only rotations
  keywarden keys log --since 2026-01-01   # Entries after a date
  keywarden keys log --json               # JSON output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Loading audit log...", verbose)
		defer cleanup()

		env, err := newReadOnlyEnvironment()
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectNotInitialized) {
				spinner.FinalMSG = notInitializedMessage()
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set up environment: %v", err)
		}

		opts := workflows.LogOptions{
			Limit:     logLimit,
			Reverse:   logReverse,
			Operation: logOperation,
		}
		if logSince != "" {
			t, parseErr := time.Parse("2006-01-02", logSince)
			if parseErr != nil {
				return Logger.ErrorfAndReturn("Invalid --since date %q (expected YYYY-MM-DD)", logSince)
			}
			opts.Since = t
		}
		if logUntil != "" {
			t, parseErr := time.Parse("2006-01-02", logUntil)
			if parseErr != nil {
				return Logger.ErrorfAndReturn("Invalid --until date %q (expected YYYY-MM-DD)", logUntil)
			}
			opts.Until = t.Add(24 * time.Hour)
		}

		entries, err := workflows.QueryLog(cmd.Context(), env, opts)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read audit log: %v", err)
		}

		if logJSON {
			out, marshalErr := json.MarshalIndent(entries, "", "  ")
			if marshalErr != nil {
				return Logger.ErrorfAndReturn("Failed to encode entries: %v", marshalErr)
			}
			spinner.FinalMSG = string(out)
			return nil
		}

		if len(entries) == 0 {
			spinner.FinalMSG = ui.Warning.Sprint("⚠") + " No matching audit entries"
			return nil
		}

		var msg strings.Builder
		for _, e := range entries {
			if logOneline {
				msg.WriteString(formatEntryOneline(e) + "\n")
			} else {
				msg.WriteString(formatEntry(e))
			}
		}
		spinner.FinalMSG = strings.TrimSuffix(msg.String(), "\n")
		return nil
	},
}

func formatEntryOneline(e audit.Entry) string {
	ts := e.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
		ts = t.Format("2006-01-02 15:04:05")
	}
	subject := e.Principal
	if subject == "" {
		subject = e.Path
	}
	return fmt.Sprintf("%s %s %s %s", ui.Muted.Sprint(ts), e.Operation, subject, e.Outcome)
}

func formatEntry(e audit.Entry) string {
	var b strings.Builder
	b.WriteString(ui.Highlight.Sprint(e.Operation) + " " + ui.Muted.Sprint(e.Timestamp) + "\n")
	if e.Principal != "" {
		b.WriteString("    principal: " + e.Principal)
		if e.Group != "" {
			b.WriteString(" (" + e.Group + ")")
		}
		b.WriteString("\n")
	}
	if e.KeyFingerprint != "" {
		b.WriteString("    key: " + e.KeyFingerprint + "\n")
	}
	if e.Path != "" {
		b.WriteString("    path: " + ui.Path.Sprint(e.Path) + "\n")
	}
	if e.Classification != "" {
		b.WriteString("    classification: " + e.Classification + "\n")
	}
	if e.Operation == "reconcile" || e.DocsAttempted > 0 {
		b.WriteString(fmt.Sprintf("    documents: %d attempted, %d failed\n", e.DocsAttempted, e.DocsFailed))
	}
	if e.RotatedCount > 0 {
		b.WriteString(fmt.Sprintf("    rotated: %d\n", e.RotatedCount))
	}
	if e.FieldsChanged > 0 {
		b.WriteString(fmt.Sprintf("    fields changed: %d\n", e.FieldsChanged))
	}
	if e.Outcome != "" {
		b.WriteString("    outcome: " + e.Outcome + "\n")
	}
	return b.String()
}
