package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form of an answer used for equality checks.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00a0', '\u202f':
			return -1
		case ',', '.', ';', ':':
			return -1
		}
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	// cases.Caser keeps state, so it is not shared between calls.
	return norm.NFC.String(cases.Lower(language.Und).String(stripped))
}
