package discord

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage_ShortTextIsUntouched(t *testing.T) {
	assert.Equal(t, []string{"hello\nworld"}, SplitMessage("hello\nworld", MessageLimit))
	assert.Equal(t, []string{""}, SplitMessage("", 0))
}

func TestSplitMessage_CutsOnLines(t *testing.T) {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = strings.Repeat(string(rune('a'+i%26)), 20)
	}
	text := strings.Join(lines, "\n")

	chunks := SplitMessage(text, 100)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
	}
	assert.Equal(t, text, strings.Join(chunks, "\n"))
}

func TestSplitMessage_RepairsCodeFences(t *testing.T) {
	body := strings.Repeat("0123456789\n", 30)
	text := "Scoreboard\n```diff\n" + body + "```\nfooter"

	chunks := SplitMessage(text, 100)
	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.Equal(t, 0, strings.Count(c, "```")%2, "chunk %d has an unbalanced fence:\n%s", i, c)
	}
	assert.True(t, strings.HasPrefix(chunks[1], "```diff\n"))
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "footer"))
}

func TestSplitMessage_CutsLongLines(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitMessage(text, 100)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitMessage_CountsRunes(t *testing.T) {
	text := strings.Repeat("🥇 medal\n", 30)
	for _, c := range SplitMessage(text, 64) {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 64)
	}
}
