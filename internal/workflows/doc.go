// Package workflows provides high-level orchestration for Keywarden commands.
//
// Workflows coordinate multiple operations across packages (registry,
// gateway, reconcile, rotate, audit) to implement complete user-facing
// features. Each workflow handles a single command's business logic,
// independent of CLI concerns like flag parsing, spinners, and output
// formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Resolving the project and loading the registry
//   - Validating prerequisites
//   - Performing the core operation
//   - Recording audit trail entries
//
// # Available Workflows
//
// Each command has a corresponding workflow:
//
//   - Init: Initializes a new Keywarden project
//   - Onboard: Registers a principal and reconciles their documents
//   - Offboard: Removes a principal and revokes their effective access
//   - ReconcileAll: Converges all document envelopes to current policy
//   - VerifyAccess: Reports which documents a key can actually decrypt
//   - RotateDocs: Replaces secret values and re-encrypts documents
//   - ListAccess: Renders the registry as an access listing
//   - QueryLog: Filters the append-only audit log
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching. Use errors.Is() to check for specific error conditions:
//
//	result, err := workflows.Onboard(ctx, env, opts)
//	if errors.Is(err, kerrors.ErrDuplicatePrincipal) {
//	    // Show user-friendly duplicate message
//	}
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// This enables cancellation, timeouts, and passing request-scoped values.
package workflows
