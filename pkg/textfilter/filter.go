// Package textfilter is the local content-safety check for player and guide text.
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

// Mild profanity is replaced with family-friendly alternatives
var replacements = map[string]string{
	"fuck":         "fudge",
	"fucking":      "fudging",
	"shit":         "shoot",
	"damn":         "dang",
	"hell":         "heck",
	"ass":          "butt",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"dick":         "jerk",
	"motherfucker": "mother-trucker",
	"goddamn":      "gosh-dang",
	"asshole":      "jerk",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"smartass":     "smarty",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"dipshit":      "dummy",
	"shithead":     "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"douche":       "jerk",
	"douchebag":    "jerk",
}

// Slurs and explicit terms block the whole message
var blockedTerms = []string{
	"nigger", "nigga", "spic", "chink", "kike", "fag", "faggot", "retard",
	"cock", "pussy", "whore", "slut", "porn",
}

// ProfanityFilter replaces mild profanity and detects blocked terms.
type ProfanityFilter struct {
	words   []string
	regexes map[string]*regexp.Regexp
	blocked []*regexp.Regexp
}

// NewProfanityFilter creates a new profanity filter
func NewProfanityFilter() *ProfanityFilter {
	pf := &ProfanityFilter{
		regexes: make(map[string]*regexp.Regexp, len(replacements)),
	}

	for word := range replacements {
		pf.words = append(pf.words, word)
	}
	// longest first so "bullshit" is replaced before "shit"
	sortByLengthDesc(pf.words)

	for _, word := range pf.words {
		pf.regexes[word] = wordRegex(word)
	}
	for _, term := range blockedTerms {
		pf.blocked = append(pf.blocked, wordRegex(term+`s?`))
	}
	return pf
}

func wordRegex(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + word + `\b`)
}

func sortByLengthDesc(words []string) {
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

// FilterText replaces profanity in the input text with family-friendly alternatives
func (pf *ProfanityFilter) FilterText(text string) string {
	result := text
	for _, word := range pf.words {
		replacement := replacements[word]
		result = pf.regexes[word].ReplaceAllStringFunc(result, func(match string) string {
			return preserveCase(match, replacement)
		})
	}
	return result
}

// ContainsProfanity checks if the text contains any replaceable profanity
func (pf *ProfanityFilter) ContainsProfanity(text string) bool {
	for _, word := range pf.words {
		if pf.regexes[word].MatchString(text) {
			return true
		}
	}
	return false
}

// ContainsBlocked checks if the text contains a term that blocks the message
func (pf *ProfanityFilter) ContainsBlocked(text string) bool {
	for _, re := range pf.blocked {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// preserveCase applies the case pattern of the original word to the replacement
func preserveCase(original, replacement string) string {
	if len(original) == 0 {
		return replacement
	}

	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	// Mixed case: copy the pattern character by character
	result := make([]rune, 0, len(replacement))
	originalRunes := []rune(original)
	for i, r := range replacement {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}
	return string(result)
}
