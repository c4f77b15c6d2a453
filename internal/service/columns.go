package service

import (
	"strings"
	"unicode"
)

// columnMatcher decides whether a header satisfies a configured candidate name
type columnMatcher func(header, candidate string) bool

// exactMatchers are tried per candidate before moving to the next one;
// squash only runs once no candidate matched exactly or case-insensitively
var (
	exactMatchers = []columnMatcher{
		func(h, c string) bool { return h == c },
		strings.EqualFold,
	}
	fuzzyMatchers = []columnMatcher{
		func(h, c string) bool { return squash(h) == squash(c) },
	}
)

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// ResolveColumn finds the header matching one of candidates. Earlier
// candidates win over later ones unless only whitespace-insensitive
// matching finds them.
func ResolveColumn(headers, candidates []string) (string, bool) {
	for _, matchers := range [][]columnMatcher{exactMatchers, fuzzyMatchers} {
		for _, c := range candidates {
			for _, match := range matchers {
				for _, h := range headers {
					if match(h, c) {
						return h, true
					}
				}
			}
		}
	}
	return "", false
}
