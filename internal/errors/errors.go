package errors

import "errors"

// Configuration errors are detected before any mutation is applied. The
// registry is left untouched when one of these is returned.
var (
	// ErrDuplicatePrincipal indicates a principal with the same name already exists.
	ErrDuplicatePrincipal = errors.New("principal already exists")

	// ErrPrincipalNotFound indicates the named principal is not in the registry.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrInvalidPrincipalName indicates the name is not a valid identifier.
	ErrInvalidPrincipalName = errors.New("invalid principal name")

	// ErrInvalidKeyFormat indicates the public key failed the scheme's syntax check.
	ErrInvalidKeyFormat = errors.New("invalid public key format")

	// ErrInvalidGroup indicates the group is not one of the closed set.
	ErrInvalidGroup = errors.New("invalid group")
)

// Registry state errors indicate issues with the persisted registry artifact.
var (
	// ErrProjectNotInitialized indicates the project has no .keywarden directory.
	ErrProjectNotInitialized = errors.New("project has not been initialized")

	// ErrProjectAlreadyInitialized indicates keywarden is already set up here.
	ErrProjectAlreadyInitialized = errors.New("project has already been initialized")

	// ErrRegistryNotFound indicates the registry artifact could not be located.
	ErrRegistryNotFound = errors.New("registry not found")

	// ErrRegistryLocked indicates another mutation currently holds the registry lock.
	ErrRegistryLocked = errors.New("registry is locked by another operation")

	// ErrRegistryInvalid indicates a registry invariant does not hold.
	// Correct mutator logic never produces it; hand-edited artifacts can.
	ErrRegistryInvalid = errors.New("registry invariant violation")
)

// Key errors indicate issues locating or using key material.
var (
	// ErrPrivateKeyNotFound indicates the operator's private key could not be located.
	ErrPrivateKeyNotFound = errors.New("private key not found")

	// ErrInvalidPrivateKey indicates the private key is malformed or unsupported.
	ErrInvalidPrivateKey = errors.New("invalid or unsupported private key format")
)

// Document errors indicate issues with the governed document store.
var (
	// ErrNoDocumentsFound indicates no governed documents matched.
	ErrNoDocumentsFound = errors.New("no governed documents found")

	// ErrDocumentNotFound indicates a specific document could not be located.
	ErrDocumentNotFound = errors.New("document not found")
)
