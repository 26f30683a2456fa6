package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	kerrors "github.com/halcyonlabs/keywarden/internal/errors"
	"github.com/halcyonlabs/keywarden/internal/registry"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

var (
	listJSON  bool
	listRules bool
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "emit the listing as JSON")
	listCmd.Flags().BoolVar(&listRules, "rules", false, "also show access rules and their recipients")
}

// resetListCommandState resets the list command's flag state for testing.
func resetListCommandState() {
	listJSON = false
	listRules = false
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Shows registered principals and their access scope",
	Long: `Reads the access registry and prints every registered principal with
their group, key fingerprint, and the document patterns their group
grants. Read-only; reflects declared policy, not effective access
(use verify for that).

Examples:
  # Show all principals
  keywarden keys list

  # Include access rules with materialized recipients
  keywarden keys list --rules

  # Machine-readable
  keywarden keys list --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spinner, cleanup := startSpinner("Loading registry...", verbose)
		defer cleanup()

		// Registry reads need no operator key.
		env, err := newReadOnlyEnvironment()
		if err != nil {
			if errors.Is(err, kerrors.ErrProjectNotInitialized) {
				spinner.FinalMSG = notInitializedMessage()
				return nil
			}
			return Logger.ErrorfAndReturn("Failed to set up environment: %v", err)
		}

		listing, err := workflows.ListAccess(cmd.Context(), env)
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read registry: %v", err)
		}

		if listJSON {
			out, marshalErr := json.MarshalIndent(listing, "", "  ")
			if marshalErr != nil {
				return Logger.ErrorfAndReturn("Failed to encode listing: %v", marshalErr)
			}
			spinner.FinalMSG = string(out)
			return nil
		}

		var msg strings.Builder
		if len(listing.Principals) == 0 {
			msg.WriteString(ui.Warning.Sprint("⚠") + " No principals registered\n" +
				ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("keywarden keys onboard") + " to add one\n")
		} else {
			counts := listing.GroupCounts()
			msg.WriteString(fmt.Sprintf("%s %d principal(s)", ui.Success.Sprint("✓"), len(listing.Principals)))
			var parts []string
			for _, g := range registry.Groups() {
				if n := counts[g]; n > 0 {
					parts = append(parts, fmt.Sprintf("%d %s", n, g))
				}
			}
			if len(parts) > 0 {
				msg.WriteString(" " + ui.Muted.Sprint(strings.Join(parts, ", ")))
			}
			msg.WriteString("\n")
			for _, p := range listing.Principals {
				msg.WriteString(fmt.Sprintf("    %s %s %s\n",
					ui.Highlight.Sprint(p.Name), p.Group, ui.Muted.Sprint(p.Fingerprint)))
			}
		}

		if listRules {
			msg.WriteString("\nAccess rules:\n")
			for _, r := range listing.Rules {
				recipients := "nobody"
				if len(r.Principals) > 0 {
					recipients = strings.Join(r.Principals, ", ")
				}
				msg.WriteString(fmt.Sprintf("    %s %s %s\n",
					ui.Path.Sprint(r.Pattern),
					ui.Muted.Sprint(strings.Join(r.Groups, ", ")),
					recipients))
			}
		}

		spinner.FinalMSG = strings.TrimSuffix(msg.String(), "\n")
		return nil
	},
}
