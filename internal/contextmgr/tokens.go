package contextmgr

import "unicode/utf8"

const charsPerToken = 4

// EstimateTokens approximates the token count of s as ceil(chars/4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// clipRunes returns at most max runes of s.
func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
