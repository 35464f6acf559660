// internal/core/validation.go
package core

import (
	"regexp"
	"strings"
)

// Regular expression for valid table/column names (alphanumeric + underscore)
var nameValidationRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var nonIdentifierChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// IsValidIdentifier checks if a string is a valid identifier (table or column name)
// that can be embedded in generated SQL and Go code.
func IsValidIdentifier(name string) bool {
	return nameValidationRegex.MatchString(name) && len(name) > 0 && len(name) <= 64
}

// SanitizeIdentifier replaces every run of characters outside [a-zA-Z0-9_] with
// a single underscore and trims leading/trailing underscores.
// Returns "" if nothing usable is left.
func SanitizeIdentifier(name string) string {
	cleaned := strings.Trim(nonIdentifierChars.ReplaceAllString(name, "_"), "_")
	if len(cleaned) > 64 {
		cleaned = cleaned[:64]
	}
	return cleaned
}
