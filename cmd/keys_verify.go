package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/utils"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var (
	verifyKeyFile     string
	verifyJSON        bool
	verifyKeyFromPipe bool
)

func init() {
	verifyCmd.Flags().StringVar(&verifyKeyFile, "key-file", "", "path to the private key to verify")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "emit the report as JSON")
	verifyCmd.Flags().BoolVar(&verifyKeyFromPipe, "private-key-stdin", false, "read the private key to verify from stdin")
}

// resetVerifyCommandState resets the verify command's flag state for testing.
func resetVerifyCommandState() {
	verifyKeyFile = ""
	verifyJSON = false
	verifyKeyFromPipe = false
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Reports which documents a key can actually decrypt",
	Long: `Attempts to decrypt every governed document with the given private key
and reports accessible counts per category (dev, staging, production,
examples). Without a key argument your operator key is verified.

The report also says whether the key belongs to a registered principal.
Effective access can lag registry state; a mismatch means reconciliation
is overdue.

Examples:
  # Verify your own operator key
  keywarden keys verify

  # Verify a specific key, as JSON
  keywarden keys verify --key-file alice.pem --json

  # Verify a key piped in
  cat alice.pem | keywarden keys verify --private-key-stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Verifying access...", verbose)
		defer cleanup()

		var keyData []byte
		switch {
		case verifyKeyFile != "":
			data, err := os.ReadFile(verifyKeyFile)
			if err != nil {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Couldn't read key file " + ui.Path.Sprint(verifyKeyFile) + "\n\n" +
					ui.Error.Sprint("Error: ") + err.Error()
				return nil
			}
			keyData = data
		case verifyKeyFromPipe:
			data, err := utils.ReadStdin()
			if err != nil {
				return Logger.ErrorfAndReturn("Failed to read key from stdin: %v", err)
			}
			keyData = data
		}

		// The candidate key doubles as the environment key, so verifying a
		// foreign key does not require an operator key on disk.
		env, err := workflows.NewEnvironment(keyData, Logger)
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectNotInitialized) {
				spinner.FinalMSG = notInitializedMessage()
				return nil
			}
			if errors.Is(err, kerrors.ErrInvalidPrivateKey) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " The private key could not be parsed"
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set up environment: %v", err)
		}

		report, err := workflows.VerifyAccess(cmd.Context(), env, workflows.VerifyOptions{
			PrivateKeyData: keyData,
		})
		if err != nil {
			if errors.Is(err, kerrors.ErrInvalidPrivateKey) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " The private key could not be parsed"
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to verify access: %v", err)
		}

		if verifyJSON {
			out, marshalErr := json.MarshalIndent(report, "", "  ")
			if marshalErr != nil {
				return Logger.ErrorfAndReturn("Failed to encode report: %v", marshalErr)
			}
			spinner.FinalMSG = string(out)
			return nil
		}

		var msg strings.Builder
		if report.Principal != nil {
			msg.WriteString(ui.Success.Sprint("✓") + " Key belongs to " + ui.Highlight.Sprint(report.Principal.Name) +
				" " + ui.Muted.Sprint(string(report.Principal.Group)) + "\n")
		} else {
			msg.WriteString(ui.Warning.Sprint("⚠") + " Key does not belong to any registered principal\n")
		}
		msg.WriteString(ui.Info.Sprint("→") + " Fingerprint: " + report.Fingerprint + "\n")
		for _, c := range report.Categories {
			mark := ui.Muted.Sprint("-")
			if c.Accessible == c.Total && c.Total > 0 {
				mark = ui.Success.Sprint("✓")
			} else if c.Accessible > 0 {
				mark = ui.Warning.Sprint("~")
			}
			msg.WriteString(fmt.Sprintf("    %s %s: %d/%d accessible\n", mark, c.Category, c.Accessible, c.Total))
		}
		spinner.FinalMSG = strings.TrimSuffix(msg.String(), "\n")
		return nil
	},
}
