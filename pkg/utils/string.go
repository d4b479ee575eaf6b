package utils

import (
	"strings"
	"unicode/utf8"
)

// CompressAllWhitespace collapses every run of whitespace, including newlines,
// into a single space and trims the result.
func CompressAllWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateString shortens s to at most maxRunes runes, appending an ellipsis
// when anything was cut.
func TruncateString(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	runes := []rune(s)
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}

	return string(runes[:maxRunes-3]) + "..."
}

// EscapeCodeBlock stops user content from closing a markdown code block.
func EscapeCodeBlock(s string) string {
	return strings.ReplaceAll(s, "```", "`\u200b``")
}
