// Package errors defines sentinel errors used across keywarden.
//
// These errors enable errors.Is checks in the command layer so that user
// input problems can be reported with actionable messages instead of raw
// error chains. Configuration errors always leave the registry untouched.
package errors
