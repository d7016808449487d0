package textfilter

import (
	"regexp"
	"strings"
)

// KeywordMatcher maps keywords to a label. ASCII keywords match on word
// boundaries; CJK keywords match as substrings since those scripts do not
// separate words with spaces.
type KeywordMatcher struct {
	order   []string
	regexes map[string][]*regexp.Regexp
}

// NewKeywordMatcher compiles the keyword sets. order fixes which label wins
// when an utterance matches more than one.
func NewKeywordMatcher(order []string, sets map[string][]string) *KeywordMatcher {
	km := &KeywordMatcher{
		order:   order,
		regexes: make(map[string][]*regexp.Regexp),
	}

	for _, label := range order {
		for _, word := range sets[label] {
			word = Normalize(word)
			if word == "" {
				continue
			}
			pattern := regexp.QuoteMeta(word)
			if !HasCJK(word) {
				pattern = `\b` + pattern + `\b`
			}
			km.regexes[label] = append(km.regexes[label], regexp.MustCompile(`(?i)`+pattern))
		}
	}

	return km
}

// Match returns the first label whose keywords occur in text.
func (km *KeywordMatcher) Match(text string) (string, bool) {
	text = Normalize(text)
	for _, label := range km.order {
		for _, re := range km.regexes[label] {
			if re.MatchString(text) {
				return label, true
			}
		}
	}
	return "", false
}

// Labels returns the labels in match order.
func (km *KeywordMatcher) Labels() []string {
	out := make([]string, len(km.order))
	copy(out, km.order)
	return out
}

// ContainsAny reports whether text mentions any of words, using the same
// boundary rules as the matcher.
func ContainsAny(text string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	km := NewKeywordMatcher([]string{"any"}, map[string][]string{"any": words})
	_, ok := km.Match(text)
	return ok
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || RuneLen(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
