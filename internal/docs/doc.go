// Package docs abstracts the governed document tree behind a small Store
// interface with file-backed and in-memory implementations, so the engine
// can run against a real project or entirely in memory under test.
package docs
