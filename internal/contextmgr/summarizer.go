package contextmgr

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	digestLineMax = 180
	maxTopics     = 6
	minKeywordLen = 4
)

var (
	wordRe  = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "there": {}, "their": {}, "would": {},
	"could": {}, "should": {}, "about": {}, "into": {}, "your": {}, "then": {},
	"than": {}, "them": {}, "they": {}, "were": {}, "will": {}, "just": {},
	"like": {}, "some": {}, "also": {}, "been": {}, "here": {}, "more": {},
	"only": {}, "other": {}, "does": {}, "make": {}, "please": {}, "want": {},
	"need": {}, "using": {}, "these": {}, "those": {}, "because": {}, "while": {},
}

// HeuristicSummarizer builds a bullet digest with keyword topics. It performs no I/O.
type HeuristicSummarizer struct{}

// Compact renders one bullet per user/assistant turn followed by a topic line.
func (HeuristicSummarizer) Compact(window []Message) string {
	var lines []string
	for _, msg := range window {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		text := strings.TrimSpace(spaceRe.ReplaceAllString(msg.Content, " "))
		lines = append(lines, clipRunes(fmt.Sprintf("- %s: %s", msg.Role, text), digestLineMax))
	}
	if topics := topKeywords(window, maxTopics); len(topics) > 0 {
		lines = append(lines, "Topics: "+strings.Join(topics, ", "))
	}
	return strings.Join(lines, "\n")
}

// topKeywords ranks words by frequency, ties broken alphabetically.
func topKeywords(window []Message, limit int) []string {
	counts := make(map[string]int)
	for _, msg := range window {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		for _, w := range wordRe.FindAllString(strings.ToLower(msg.Content), -1) {
			if len([]rune(w)) < minKeywordLen {
				continue
			}
			if _, stop := stopWords[w]; stop {
				continue
			}
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}
