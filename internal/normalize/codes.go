package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizeCode trims whitespace, uppercases, and strips non-alphanumeric
// characters from a diagnosis or procedure code. Returns "" for nil or blank input.
func NormalizeCode(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return ""
	}
	return nonAlphanumeric.ReplaceAllString(strings.ToUpper(s), "")
}

// ID trims an identifier. Identifiers are otherwise compared verbatim.
func ID(s string) string {
	return strings.TrimSpace(s)
}
