// Package utils provides shared utilities for text, math, disk usage,
// and logging.
package utils

// Truncate returns s cut to maxLen characters, with "..." appended when
// something was cut. Lengths are measured in runes so multi-byte text is
// never split mid-character. If maxLen is 0 or negative, s is returned
// unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
