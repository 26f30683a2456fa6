// Package configs resolves where a Keywarden project keeps its state.
//
// A project is any directory tree containing a .keywarden directory at
// its root. Resolve walks upward from a starting directory, finds that
// marker, and returns a Settings value with every derived path filled in:
// the registry artifact, the audit log, and the per-user key directory.
//
// Settings are resolved once per command and passed explicitly to
// workflows; the engine packages never consult ambient global state.
package configs
