package normalize

import (
	"strings"
	"time"
)

// Date and timestamp layouts seen in claims extracts. Order matters: the
// first layout that parses wins.
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate attempts to parse a date string in multiple common formats.
// Returns nil if the input is empty or unparseable.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseOptDate is ParseDate for nullable columns.
func ParseOptDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return ParseDate(*s)
}
