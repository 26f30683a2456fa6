// Package utils provides small shared helpers: stdin reading with TTY
// detection, principal name validation, and project root discovery.
package utils
