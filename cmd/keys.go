package cmd

import (
	logger "github.com/halcyonlabs/keywarden/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	KeysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Manage access to the repository's encrypted documents",
		Long:  `Provides principal onboarding and offboarding, document reconciliation, access verification, secret rotation, and audit queries.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing keys command with verbose=%t, debug=%t", verbose, debug)
		},
	}
)

func init() {
	KeysCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	KeysCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	KeysCmd.AddCommand(initCmd)
	KeysCmd.AddCommand(onboardCmd)
	KeysCmd.AddCommand(offboardCmd)
	KeysCmd.AddCommand(reconcileCmd)
	KeysCmd.AddCommand(verifyCmd)
	KeysCmd.AddCommand(rotateCmd)
	KeysCmd.AddCommand(listCmd)
	KeysCmd.AddCommand(logCmd)
}

// Helper functions for testing

// GetKeysCmd returns the KeysCmd for testing.
func GetKeysCmd() *cobra.Command {
	return KeysCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	resetOnboardCommandState()
	resetOffboardCommandState()
	resetReconcileCommandState()
	resetVerifyCommandState()
	resetRotateCommandState()
	resetListCommandState()
	resetLogCommandState()
	resetCobraFlagState()
}

// resetCobraFlagState resets the flag state for all keys commands to prevent test pollution.
func resetCobraFlagState() {
	for _, sub := range KeysCmd.Commands() {
		sub.Flags().VisitAll(func(flag *pflag.Flag) {
			flag.Changed = false
		})
	}
}

// SetLogger sets the logger for testing.
func SetLogger(l logger.Logger) {
	Logger = l
}
