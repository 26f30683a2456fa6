package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var (
	rotateSelectors   []string
	rotateKeyFromPipe bool
)

func init() {
	rotateCmd.Flags().StringSliceVar(&rotateSelectors, "field", nil, "rotate only fields whose names contain this substring (repeatable)")
	rotateCmd.Flags().BoolVar(&rotateKeyFromPipe, "private-key-stdin", false, "read your operator private key from stdin")
}

// resetRotateCommandState resets the rotate command's flag state for testing.
func resetRotateCommandState() {
	rotateSelectors = nil
	rotateKeyFromPipe = false
}

var rotateCmd = &cobra.Command{
	Use:   "rotate [paths...]",
	Short: "Replaces secret values and re-encrypts the documents",
	Long: `Decrypts the selected documents, replaces the values of their
secret-bearing fields with freshly generated ones, and re-encrypts each
for the registry's current recipient set. Without arguments every
governed document is rotated.

Documents with no recognizable secret fields are re-encrypted and stamped
but flagged: their values must be updated manually.

Examples:
  # Rotate everything
  keywarden keys rotate

  # Rotate one document
  keywarden keys rotate docs/production/database.sealed

  # Rotate only token fields under staging
  keywarden keys rotate 'docs/staging/**' --field token`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Rotating secrets...", verbose)
		defer cleanup()

		env, err := newEnvironment(rotateKeyFromPipe)
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectNotInitialized) {
				spinner.FinalMSG = notInitializedMessage()
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set up environment: %v", err)
		}

		result, err := workflows.RotateDocs(cmd.Context(), env, workflows.RotateOptions{
			Paths:     args,
			Selectors: rotateSelectors,
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrNoDocumentsFound) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " No governed documents match"
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to rotate: %v", err)
		}

		var msg strings.Builder
		if len(result.Failures) == 0 {
			msg.WriteString(ui.Success.Sprint("✓"))
		} else {
			msg.WriteString(ui.Warning.Sprint("⚠"))
		}
		msg.WriteString(fmt.Sprintf(" Rotated %d document(s), %d field(s) changed\n", len(result.Records), result.FieldsChanged()))
		for _, rec := range result.Records {
			line := "    " + ui.Success.Sprint("✓") + " " + ui.Path.Sprint(rec.Path) + " " + ui.Muted.Sprint(string(rec.Classification))
			if rec.ManualUpdateRequired {
				line += " " + ui.Warning.Sprint("manual update required")
			}
			msg.WriteString(line + "\n")
		}
		for path, reason := range result.Failures {
			msg.WriteString("    " + ui.Error.Sprint("✗") + " " + ui.Path.Sprint(path) + ": " + reason + "\n")
		}
		spinner.FinalMSG = strings.TrimSuffix(msg.String(), "\n")
		return nil
	},
}
