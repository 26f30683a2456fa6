// Package verify answers "what can this key actually decrypt right now"
// per governed category, and cross-checks the key against the registry.
// Both views together expose stale documents: envelopes that have not
// caught up with registry state.
package verify
