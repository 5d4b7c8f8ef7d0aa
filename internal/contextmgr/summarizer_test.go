package contextmgr

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicSummarizer_Compact(t *testing.T) {
	window := []Message{
		{Role: RoleUser, Content: "Please refactor   the parser\nmodule"},
		{Role: RoleTool, Content: "parser parser parser parser"},
		{Role: RoleAssistant, Content: "Refactored the parser and added tests"},
	}

	digest := HeuristicSummarizer{}.Compact(window)
	lines := strings.Split(digest, "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "- user: Please refactor the parser module", lines[0])
	assert.Equal(t, "- assistant: Refactored the parser and added tests", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Topics: parser"))
}

func TestHeuristicSummarizer_ClipsLongTurns(t *testing.T) {
	window := []Message{{Role: RoleUser, Content: strings.Repeat("word ", 200)}}

	digest := HeuristicSummarizer{}.Compact(window)
	first := strings.Split(digest, "\n")[0]

	assert.Equal(t, digestLineMax, utf8.RuneCountInString(first))
}

func TestHeuristicSummarizer_EmptyWindow(t *testing.T) {
	assert.Equal(t, "", HeuristicSummarizer{}.Compact(nil))
}

func TestTopKeywords(t *testing.T) {
	window := []Message{
		{Role: RoleUser, Content: "delta delta alpha alpha beta cat this that should"},
		{Role: RoleAssistant, Content: "gamma zeta theta kappa omega"},
	}

	topics := topKeywords(window, maxTopics)

	// Frequency first, then alphabetical; stop words and short words dropped.
	assert.Equal(t, []string{"alpha", "delta", "beta", "gamma", "kappa", "omega"}, topics)
	assert.NotContains(t, topics, "cat")
	assert.NotContains(t, topics, "should")
}

func TestTopKeywords_IgnoresToolMessages(t *testing.T) {
	window := []Message{{Role: RoleTool, Content: "compiler compiler compiler"}}

	assert.Empty(t, topKeywords(window, maxTopics))
}
