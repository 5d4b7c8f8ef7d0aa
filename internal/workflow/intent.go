package workflow

import (
	"strings"
	"unicode"
)

// Intent is the category a free-text query is routed to.
type Intent string

const (
	IntentCodeReview    Intent = "codeReview"
	IntentBugFinder     Intent = "bugFinder"
	IntentTestGen       Intent = "testGen"
	IntentRefactor      Intent = "refactor"
	IntentDocumentation Intent = "documentation"
	IntentOptimization  Intent = "optimization"
	IntentGeneral       Intent = "general"
)

// intentTable is checked in order; the first intent with a matching keyword
// wins. Keywords match whole words, so inflections are listed explicitly.
var intentTable = []struct {
	intent   Intent
	keywords []string
}{
	{IntentCodeReview, []string{"review", "reviews", "critique", "feedback on", "code quality"}},
	{IntentBugFinder, []string{
		"bug", "bugs", "buggy", "error", "errors", "crash", "crashes", "crashing",
		"broken", "exception", "exceptions", "fails", "failing", "fix", "fixes", "fixing",
	}},
	{IntentTestGen, []string{"unit test", "unit tests", "tests", "test", "testing", "coverage"}},
	{IntentRefactor, []string{"refactor", "refactoring", "clean up", "cleanup", "restructure", "simplify", "rename"}},
	{IntentDocumentation, []string{
		"document", "documentation", "docs", "docstring", "docstrings",
		"comment", "comments", "readme", "explain",
	}},
	{IntentOptimization, []string{
		"optimize", "optimise", "optimization", "optimisation", "optimizing", "optimising",
		"performance", "speed up", "faster", "memory usage", "slow",
	}},
}

// AnalyzeIntent classifies query by case-insensitive whole-word keyword match.
// Queries matching nothing are IntentGeneral.
func AnalyzeIntent(query string) Intent {
	words := splitWords(query)
	for _, row := range intentTable {
		for _, kw := range row.keywords {
			if containsPhrase(words, splitWords(kw)) {
				return row.intent
			}
		}
	}
	return IntentGeneral
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as consecutive entries of words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, w := range phrase {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
