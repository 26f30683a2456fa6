// Package ui provides semantic terminal formatting for CLI output.
//
// Formatters degrade gracefully when color is unavailable: some substitute
// plain-text decorations (backticks for code, quotes for highlights) so the
// output stays readable in logs and pipes. NO_COLOR is respected.
package ui
