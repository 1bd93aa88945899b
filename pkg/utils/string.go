package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Truncate is a simple string truncate. It never splits a multi-byte
// character, so the result may be a few bytes shorter than maxLen.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Sanitize makes untrusted text safe to show to a user or put in a log line:
// invalid UTF-8 is dropped, control characters (including newlines) become
// spaces, and runs of whitespace collapse to one space.
func Sanitize(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
