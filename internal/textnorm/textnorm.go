// Package textnorm produces the canonical match form shared by alias keys,
// player names and comment bodies.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, turns every rune that is not a letter, number,
// underscore or whitespace into a space, collapses whitespace runs and trims.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	lowered := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if isWord(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
