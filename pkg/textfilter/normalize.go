package textfilter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

var folder = cases.Fold()

// Normalize prepares an utterance for keyword matching: full-width forms
// are narrowed, case is folded and whitespace runs collapse to one space.
func Normalize(s string) string {
	s = width.Fold.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// RuneLen counts characters rather than bytes, so that a short Chinese
// message is short.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// HasCJK reports whether s contains at least one Han, Hiragana, Katakana
// or Hangul character.
func HasCJK(s string) bool {
	for _, r := range s {
		if isCJK(r) {
			return true
		}
	}
	return false
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// HasDigit reports whether s contains a decimal digit.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
