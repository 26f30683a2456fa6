package utils

import (
	"regexp"
	"strings"

	"github.com/halcyonlabs/keywarden/internal/ui"
)

// principalNameRegex matches valid principal identifiers: lowercase,
// starting with a letter, alphanumeric and underscore after that.
var principalNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// IsValidPrincipalName checks whether the given string is a valid principal identifier.
func IsValidPrincipalName(name string) bool {
	if name == "" {
		return false
	}
	return principalNameRegex.MatchString(name)
}

// FormatPaths formats a slice of paths into a readable indented list.
func FormatPaths(paths []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, path := range paths {
		b.WriteString("    - ")
		b.WriteString(ui.Path.Sprint(path))
		b.WriteString("\n")
	}
	return b.String()
}
