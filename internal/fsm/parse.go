// Package fsm holds the in-memory conversational state machine shared by all
// dialog flows: the per-user state store and the strict date/time parsers.
package fsm

import (
	"strings"
	"time"
)

// Layout constants for user-supplied dates and times. Both are deliberately
// strict: any other format, including otherwise valid dates, is rejected.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseDate validates that text is a calendar date in YYYY-MM-DD format.
// It returns the trimmed string and true on success. Malformed input is an
// expected outcome, reported through the bool, never through an error.
func ParseDate(text string) (string, bool) {
	s := strings.TrimSpace(text)
	t, err := time.Parse(DateLayout, s)
	// time.Parse tolerates missing leading zeros; the round-trip comparison
	// rejects inputs like "2025-1-3".
	if err != nil || t.Format(DateLayout) != s {
		return "", false
	}
	return s, true
}

// ParseTime validates that text is a 24-hour time in HH:MM format.
// Same contract as ParseDate.
func ParseTime(text string) (string, bool) {
	s := strings.TrimSpace(text)
	t, err := time.Parse(TimeLayout, s)
	if err != nil || t.Format(TimeLayout) != s {
		return "", false
	}
	return s, true
}
