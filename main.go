package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyonlabs/keywarden/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "keywarden",
	Short: "Keywarden - Cryptographic access control for encrypted repository documents.",
	Long: `Keywarden manages who can read the encrypted documents in a repository.

A registry of principals, groups, and access rules declares policy; every
governed document is encrypted so that exactly the expected recipients can
open it. Onboarding, offboarding, rotation, and reconciliation keep the
documents converged to the registry.

Usage:
  keywarden <command> [flags]

Available Commands:
  keys    Manage principals, document access, rotation, and the audit log

Run 'keywarden help <command>' for more details on a specific command.
`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to Keywarden! Run 'keywarden --help' to see available commands.")
	},
}

func main() {
	rootCmd.AddCommand(cmd.KeysCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
