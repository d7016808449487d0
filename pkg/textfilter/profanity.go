package textfilter

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Rival taunts are generated by the model and shown verbatim, so they pass
// through a softening filter first.
var softenings = map[string]string{
	"fuck":     "fudge",
	"shit":     "shoot",
	"damn":     "dang",
	"hell":     "heck",
	"ass":      "butt",
	"bitch":    "jerk",
	"bastard":  "jerk",
	"crap":     "crud",
	"asshole":  "jerk",
	"dumbass":  "dummy",
	"bullshit": "baloney",
	"loser":    "slacker",
	"廢物":       "懶蟲",
	"白痴":       "傻瓜",
}

type Softener struct {
	words   []string
	regexes map[string]*regexp.Regexp
}

func NewSoftener() *Softener {
	s := &Softener{regexes: make(map[string]*regexp.Regexp)}
	for word := range softenings {
		s.words = append(s.words, word)
	}
	// Longer words first so "asshole" is handled before "ass".
	slices.SortFunc(s.words, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	for _, word := range s.words {
		pattern := regexp.QuoteMeta(word)
		if !HasCJK(word) {
			pattern = `\b` + pattern + `\b`
		}
		s.regexes[word] = regexp.MustCompile(`(?i)` + pattern)
	}
	return s
}

// Soften replaces harsh words, keeping the case shape of the original.
func (s *Softener) Soften(text string) string {
	for _, word := range s.words {
		replacement := softenings[word]
		text = s.regexes[word].ReplaceAllStringFunc(text, func(match string) string {
			return preserveCase(match, replacement)
		})
	}
	return text
}

func preserveCase(original, replacement string) string {
	switch {
	case original == "":
		return replacement
	case strings.ToUpper(original) == original && strings.ToLower(original) != original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return replacement
	}

	title := cases.Title(language.English)
	if title.String(strings.ToLower(original)) == original {
		return title.String(replacement)
	}

	out := []rune(replacement)
	orig := []rune(original)
	for i := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(out[i])
		}
	}
	return string(out)
}
