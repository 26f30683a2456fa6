package cmd

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var (
	reconcileWorkers     int
	reconcileTimeout     time.Duration
	reconcileKeyFromPipe bool
)

func init() {
	reconcileCmd.Flags().IntVar(&reconcileWorkers, "workers", 0, "worker pool size")
	reconcileCmd.Flags().DurationVar(&reconcileTimeout, "timeout", 0, "per-document timeout")
	reconcileCmd.Flags().BoolVar(&reconcileKeyFromPipe, "private-key-stdin", false, "read your operator private key from stdin")
}

// resetReconcileCommandState resets the reconcile command's flag state for testing.
func resetReconcileCommandState() {
	reconcileWorkers = 0
	reconcileTimeout = 0
	reconcileKeyFromPipe = false
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Converges every document's recipients to the current registry",
	Long: `Walks every governed document and re-encrypts it for exactly the
recipient set the registry derives for its path. Documents that fail are
reported and skipped; the rest of the run continues.

Run this after editing the registry by hand, or whenever you suspect
document envelopes have drifted from policy.

Examples:
  # Reconcile with defaults (4 workers, 30s per document)
  keywarden keys reconcile

  # Tune the pool for a large repository
  keywarden keys reconcile --workers 16 --timeout 10s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Reconciling documents...", verbose)
		defer cleanup()

		env, err := newEnvironment(reconcileKeyFromPipe)
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectNotInitialized) {
				spinner.FinalMSG = notInitializedMessage()
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set up environment: %v", err)
		}

		report, err := workflows.ReconcileAll(cmd.Context(), env, workflows.ReconcileOptions{
			Workers: reconcileWorkers,
			Timeout: reconcileTimeout,
		})
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to reconcile: %v", err)
		}

		var msg string
		if report.Ok() {
			msg = ui.Success.Sprint("✓") + " All documents match policy\n"
		} else {
			msg = ui.Warning.Sprint("⚠") + " Some documents could not be reconciled\n"
		}
		msg += reportSummary(report)
		spinner.FinalMSG = strings.TrimSuffix(msg, "\n")
		return nil
	},
}
