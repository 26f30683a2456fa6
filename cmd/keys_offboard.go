package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/utils"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var (
	offboardRotate      bool
	offboardDryRun      bool
	offboardWorkers     int
	offboardTimeout     time.Duration
	offboardKeyFromPipe bool
)

func init() {
	offboardCmd.Flags().BoolVar(&offboardRotate, "rotate", false, "also rotate the secret values the principal could read")
	offboardCmd.Flags().BoolVar(&offboardDryRun, "dry-run", false, "preview the change without modifying anything")
	offboardCmd.Flags().IntVar(&offboardWorkers, "workers", 0, "reconciliation worker pool size")
	offboardCmd.Flags().DurationVar(&offboardTimeout, "timeout", 0, "per-document reconciliation timeout")
	offboardCmd.Flags().BoolVar(&offboardKeyFromPipe, "private-key-stdin", false, "read your operator private key from stdin")
}

// resetOffboardCommandState resets the offboard command's flag state for testing.
func resetOffboardCommandState() {
	offboardRotate = false
	offboardDryRun = false
	offboardWorkers = 0
	offboardTimeout = 0
	offboardKeyFromPipe = false
}

var offboardCmd = &cobra.Command{
	Use:   "offboard <name>",
	Short: "Removes a principal and revokes their effective access",
	Long: `Removes a principal from the access registry and re-encrypts every
document they could read under a fresh content key, so their old key
material can no longer open anything.

Re-encryption revokes future reads. Values the principal has already seen
remain compromised until rotated; pass --rotate to replace them in the
same operation.

Examples:
  # Offboard a departing developer
  keywarden keys offboard alice

  # Offboard and rotate everything they could read
  keywarden keys offboard alice --rotate

  # Preview the blast radius first
  keywarden keys offboard alice --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		spinner, cleanup := startSpinner(fmt.Sprintf("Offboarding %s...", name), verbose)
		defer cleanup()

		env, err := newEnvironment(offboardKeyFromPipe)
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectNotInitialized) {
				spinner.FinalMSG = notInitializedMessage()
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set up environment: %v", err)
		}

		result, err := workflows.Offboard(cmd.Context(), env, workflows.OffboardOptions{
			Name:           name,
			RotateAffected: offboardRotate,
			DryRun:         offboardDryRun,
			Workers:        offboardWorkers,
			Timeout:        offboardTimeout,
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrPrincipalNotFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Principal " + ui.Highlight.Sprint(name) + " is not registered"
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to offboard %s: %v", name, err)
		}

		if result.DryRun {
			msg := ui.Warning.Sprint("⚠") + " Dry run: no changes made\n" +
				ui.Info.Sprint("→") + " Would remove " + ui.Highlight.Sprint(name) + " from group " + ui.Highlight.Sprint(result.Group) + "\n"
			if len(result.AffectedDocs) == 0 {
				msg += ui.Info.Sprint("→") + " No documents currently list them as a recipient"
			} else {
				msg += ui.Info.Sprint("→") + " Documents to re-encrypt: " + utils.FormatPaths(result.AffectedDocs)
			}
			spinner.FinalMSG = strings.TrimSuffix(msg, "\n")
			return nil
		}

		msg := ui.Success.Sprint("✓") + " Principal " + ui.Highlight.Sprint(name) + " offboarded\n"
		msg += reportSummary(result.Report)
		if offboardRotate {
			msg += fmt.Sprintf("%s Rotated %d document(s)\n", ui.Info.Sprint("→"), len(result.Rotated))
			for path, reason := range result.RotationFailures {
				msg += "    " + ui.Error.Sprint("✗") + " " + ui.Path.Sprint(path) + ": " + reason + "\n"
			}
		}
		spinner.FinalMSG = strings.TrimSuffix(msg, "\n")
		return nil
	},
}
