package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/halcyonlabs/keywarden/internal/reconcile"
	"github.com/halcyonlabs/keywarden/internal/ui"
	"github.com/halcyonlabs/keywarden/internal/utils"
	"github.com/halcyonlabs/keywarden/internal/workflows"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
// This ensures consistent output formatting across all commands.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	if !verbose && !debug {
		s.Start()
		// Discard log output unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if !verbose && !debug {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if !verbose && !debug {
			s.Stop()
		}

		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// newEnvironment builds the workflow environment, reading the operator
// private key from stdin when requested.
func newEnvironment(keyFromStdin bool) (*workflows.Environment, error) {
	var keyData []byte
	if keyFromStdin {
		data, err := utils.ReadStdin()
		if err != nil {
			return nil, fmt.Errorf("reading private key from stdin: %w", err)
		}
		keyData = data
	}
	return workflows.NewEnvironment(keyData, Logger)
}

// newReadOnlyEnvironment builds an environment without an operator key,
// for commands that only read the registry or the audit log.
func newReadOnlyEnvironment() (*workflows.Environment, error) {
	return workflows.NewReadOnlyEnvironment(Logger)
}

// reportSummary renders a reconciliation report for a spinner final message.
func reportSummary(report *reconcile.Report) string {
	if report == nil {
		return ""
	}
	msg := fmt.Sprintf("%s Reconciled %d of %d document(s)\n", ui.Info.Sprint("→"), report.Reconciled, report.Attempted)
	for _, f := range report.Failures {
		msg += "    " + ui.Error.Sprint("✗") + " " + ui.Path.Sprint(f.Path) + ": " + f.Reason + "\n"
	}
	for _, w := range report.Warnings {
		msg += "    " + ui.Warning.Sprint("⚠") + " " + w + "\n"
	}
	return msg
}

// notInitializedMessage is the shared final message for commands run
// outside a Keywarden project.
func notInitializedMessage() string {
	return ui.Error.Sprint("✗") + " Keywarden has not been initialized\n" +
		ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("keywarden keys init") + " first"
}
