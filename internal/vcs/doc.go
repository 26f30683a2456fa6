// Package vcs is the change-tracking sink: a narrow, best-effort
// interface for recording which files a lifecycle operation touched.
package vcs
