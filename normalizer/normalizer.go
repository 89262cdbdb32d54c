// Package normalizer canonicalizes free text for search and matching.
// Every keyword, match key and query term in the catalog goes through
// Normalize so that accents and case never affect a lookup.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, removes the combining marks and recomposes.
// Compiled once, reused by every call.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases s, strips diacritical marks and drops everything that
// is not a letter, a digit or a space. It is idempotent: applying it twice
// yields the same result as applying it once.
func Normalize(s string) string {
	s = strings.ToLower(s)

	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Malformed input is kept as-is rather than lost
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Tokenize normalizes s and splits it on whitespace, dropping empty tokens.
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// UniqueTokens returns the deduplicated tokens of all given texts, in first
// occurrence order. Used to derive the keyword set of catalog entries.
func UniqueTokens(texts ...string) []string {
	seen := make(map[string]struct{})
	var tokens []string

	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}

	return tokens
}
