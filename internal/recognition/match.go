package recognition

import (
	"strings"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
)

// Similarity is 1 - editDistance/maxLen over runes, case-insensitive. 1 means identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.Distance(a, b))/float64(maxLen)
}

// Match scores every item against an expected label and records the best one.
// An empty expected label leaves the result untouched.
func Match(result *Result, expected string) {
	if result == nil || strings.TrimSpace(expected) == "" {
		return
	}

	best := -1
	for i := range result.Items {
		score := Similarity(result.Items[i].Label, expected)
		result.Items[i].MatchScore = &score
		if best < 0 || score > *result.Items[best].MatchScore {
			best = i
		}
	}
	if best >= 0 {
		item := result.Items[best]
		result.BestMatch = &item
	}
}
