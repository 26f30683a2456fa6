package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure. Kinds are per-document and never
// fatal to a batch: orchestrators record them and continue.
type Kind string

const (
	// KindAccessDenied means the presented key is not a recipient of the
	// document's envelope.
	KindAccessDenied Kind = "access_denied"

	// KindMalformed means the envelope could not be parsed or opened.
	KindMalformed Kind = "malformed"

	// KindUnavailable means the backing store could not serve the document.
	KindUnavailable Kind = "unavailable"

	// KindTimeout means the operation exceeded the caller's deadline.
	KindTimeout Kind = "timeout"
)

// Error is a classified gateway failure for a single document.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the gateway failure kind from err, or an empty Kind if
// err is not a gateway error.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

func denied(path string, err error) error {
	return &Error{Kind: KindAccessDenied, Path: path, Err: err}
}

func malformed(path string, err error) error {
	return &Error{Kind: KindMalformed, Path: path, Err: err}
}

func unavailable(path string, err error) error {
	return &Error{Kind: KindUnavailable, Path: path, Err: err}
}
