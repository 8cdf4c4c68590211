package normalize

import (
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(`\s+`)

// Category trims and collapses whitespace in a categorical value such as a
// claim type, claim status or provider specialty. Case is preserved because
// category values become feature column names.
func Category(v *string) string {
	if v == nil {
		return ""
	}
	return multiSpace.ReplaceAllString(strings.TrimSpace(*v), " ")
}

// OptCategory is Category that returns nil for missing or blank values.
func OptCategory(v *string) *string {
	s := Category(v)
	if s == "" {
		return nil
	}
	return &s
}

// Gender maps free-form gender values onto M, F or the trimmed original.
func Gender(v *string) string {
	s := strings.ToUpper(Category(v))
	switch s {
	case "M", "MALE":
		return "M"
	case "F", "FEMALE":
		return "F"
	}
	return Category(v)
}
