package ui

import (
	"strings"
	"unicode"
)

// SanitizeLine removes control characters from s, newlines included, so
// remote text cannot inject terminal escape sequences.
func SanitizeLine(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeText is SanitizeLine but keeps line feeds.
func SanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r != '\n' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
