// Package textutil normalizes scraped text for comparisons that should
// not care about case or spacing.
package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases s and strips all whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Trim(s, " \n\t")
	s = whitespaceRegex.ReplaceAllString(s, "")
	return s
}

// ContainsAny reports whether the normalized form of s contains any of
// the given lowercase keywords.
func ContainsAny(s string, keywords []string) bool {
	s = Normalize(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
