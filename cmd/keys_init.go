package cmd

import (
	"errors"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes the access registry for this repository",
	Long: `Creates the .keywarden directory, writes a registry with the default
group rules and no principals, and generates an operator keypair.

The operator private key is stored outside the repository, in your user
config directory. Commit the .keywarden directory so the registry travels
with the repository.

Examples:
  # Initialize in the current repository
  keywarden keys init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Initializing Keywarden...", verbose)
		defer cleanup()

		result, err := workflows.Init(cmd.Context(), Logger)
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectAlreadyInitialized) {
				spinner.FinalMSG = ui.Error.Sprint("✗") + " Keywarden has already been initialized\n" +
					ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("keywarden keys onboard") + " to add principals"
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to initialize project: %v", err)
		}

		banner := figure.NewFigure("Keywarden", "alligator2", true)
		banner.Print()

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Keywarden initialized successfully!\n" +
			ui.Info.Sprint("→") + " Registry created at " + ui.Path.Sprint(result.RegistryPath) + "\n" +
			ui.Info.Sprint("→") + " Operator key saved to " + ui.Path.Sprint(result.OperatorKeyPath) + "\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("keywarden keys onboard") + " to register your first principal"
		return nil
	},
}
