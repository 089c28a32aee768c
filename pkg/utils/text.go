// Package utils provides small shared helpers for text, math, and logging.
package utils

// Truncate shortens s to at most maxChars characters and appends "..." when
// anything was cut. The cut lands on a rune boundary so multi-byte text is
// never split mid-character. A maxChars of 0 or less returns s unchanged.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := maxChars
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
