package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/registry"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/utils"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var (
	onboardGroup       string
	onboardKeyFile     string
	onboardKeyText     string
	onboardGenerate    bool
	onboardDryRun      bool
	onboardWorkers     int
	onboardTimeout     time.Duration
	onboardKeyFromPipe bool
)

func init() {
	onboardCmd.Flags().StringVarP(&onboardGroup, "group", "g", "", "group for the new principal (developer, administrator, service)")
	onboardCmd.Flags().StringVar(&onboardKeyFile, "key-file", "", "path to the principal's public key")
	onboardCmd.Flags().StringVar(&onboardKeyText, "key", "", "the principal's public key as text")
	onboardCmd.Flags().BoolVar(&onboardGenerate, "generate", false, "generate a fresh keypair for the principal")
	onboardCmd.Flags().BoolVar(&onboardDryRun, "dry-run", false, "preview the change without modifying anything")
	onboardCmd.Flags().IntVar(&onboardWorkers, "workers", 0, "reconciliation worker pool size")
	onboardCmd.Flags().DurationVar(&onboardTimeout, "timeout", 0, "per-document reconciliation timeout")
	onboardCmd.Flags().BoolVar(&onboardKeyFromPipe, "private-key-stdin", false, "read your operator private key from stdin")
	if err := onboardCmd.MarkFlagRequired("group"); err != nil {
		panic(err)
	}
}

// resetOnboardCommandState resets the onboard command's flag state for testing.
func resetOnboardCommandState() {
	onboardGroup = ""
	onboardKeyFile = ""
	onboardKeyText = ""
	onboardGenerate = false
	onboardDryRun = false
	onboardWorkers = 0
	onboardTimeout = 0
	onboardKeyFromPipe = false
}

var onboardCmd = &cobra.Command{
	Use:   "onboard <name>",
	Short: "Registers a principal and grants access to their group's documents",
	Long: `Registers a new principal in the access registry and re-encrypts every
document their group can read so the new key becomes a recipient.

The principal needs a public key: supply one with --key or --key-file, or
pass --generate to create a fresh keypair (the private key is saved to
your user config directory for handover).

Examples:
  # Onboard a developer from a key file
  keywarden keys onboard alice --group developer --key-file alice.pub

  # Onboard a service account with a generated keypair
  keywarden keys onboard deploy_bot --group service --generate

  # Preview without changing anything
  keywarden keys onboard alice --group developer --key-file alice.pub --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		spinner, cleanup := startSpinner(fmt.Sprintf("Onboarding %s...", name), verbose)
		defer cleanup()

		keyText := onboardKeyText
		if onboardKeyFile != "" {
			data, err := os.ReadFile(onboardKeyFile)
			if err != nil {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Couldn't read key file " + ui.Path.Sprint(onboardKeyFile) + "\n\n" +
					ui.Error.Sprint("Error: ") + err.Error()
				return nil
			}
			keyText = string(data)
		}
		if keyText == "" && !onboardGenerate {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " No public key provided\n" +
				ui.Info.Sprint("→") + " Pass " + ui.Flag.Sprint("--key-file") + ", " + ui.Flag.Sprint("--key") + " or " + ui.Flag.Sprint("--generate")
			return nil
		}

		env, err := newEnvironment(onboardKeyFromPipe)
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectNotInitialized) {
				spinner.FinalMSG = notInitializedMessage()
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set up environment: %v", err)
		}

		result, err := workflows.Onboard(cmd.Context(), env, workflows.OnboardOptions{
			Name:          name,
			Group:         registry.Group(onboardGroup),
			PublicKeyText: keyText,
			GenerateKey:   onboardGenerate,
			DryRun:        onboardDryRun,
			Workers:       onboardWorkers,
			Timeout:       onboardTimeout,
		})
		if err != nil {
			switch {
			case errors.Is(err, kerrors.ErrDuplicatePrincipal):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Principal " + ui.Highlight.Sprint(name) + " is already registered"
			case errors.Is(err, kerrors.ErrInvalidGroup):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Unknown group " + ui.Highlight.Sprint(onboardGroup) + "\n" +
					ui.Info.Sprint("→") + " Valid groups: developer, administrator, service"
			case errors.Is(err, kerrors.ErrInvalidPrincipalName):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Invalid principal name " + ui.Highlight.Sprint(name) + "\n" +
					ui.Info.Sprint("→") + " Names are lowercase letters, digits, and underscores, starting with a letter"
			case errors.Is(err, kerrors.ErrInvalidKeyFormat):
				spinner.FinalMSG = ui.Error.Sprint("✗") + " The public key could not be parsed\n" +
					ui.Info.Sprint("→") + " OpenSSH and PEM RSA keys are supported"
			default:
				return Logger.ErrorfAndReturn("Failed to onboard %s: %v", name, err)
			}
			return nil
		}

		if result.DryRun {
			spinner.FinalMSG = ui.Warning.Sprint("⚠") + " Dry run: no changes made\n" +
				ui.Info.Sprint("→") + " Would register " + ui.Highlight.Sprint(name) + " in group " + ui.Highlight.Sprint(string(result.Group)) + "\n" +
				ui.Info.Sprint("→") + " Scope: " + utils.FormatPaths(result.Scope)
			return nil
		}

		msg := ui.Success.Sprint("✓") + " Principal " + ui.Highlight.Sprint(name) + " onboarded into group " + ui.Highlight.Sprint(string(result.Group)) + "\n"
		if result.Fingerprint != "" {
			msg += ui.Info.Sprint("→") + " Key fingerprint: " + result.Fingerprint + "\n"
		}
		if result.PrivateKeyPath != "" {
			msg += ui.Info.Sprint("→") + " Generated private key saved to " + ui.Path.Sprint(result.PrivateKeyPath) + "\n"
		}
		msg += reportSummary(result.Report)
		spinner.FinalMSG = strings.TrimSuffix(msg, "\n")
		return nil
	},
}
